package registry

import "grant-intake/internal/models"

// Organization profile
const (
	OrganizationName   models.FieldKey = "organizationName"
	RegistrationNumber models.FieldKey = "registrationNumber"
	OrganizationType   models.FieldKey = "organizationType"
	OrganizationAge    models.FieldKey = "organizationAge"
	OperationalStatus  models.FieldKey = "operationalStatus"
	YearEstablished    models.FieldKey = "yearEstablished"
)

// Contact
const (
	ContactPerson   models.FieldKey = "contactPerson"
	ContactEmail    models.FieldKey = "contactEmail"
	ContactPhone    models.FieldKey = "contactPhone"
	PhysicalAddress models.FieldKey = "physicalAddress"
	Website         models.FieldKey = "website"
)

// Governance
const (
	BoardSize            models.FieldKey = "boardSize"
	HasGoverningDocument models.FieldKey = "hasGoverningDocument"
	GoverningDocument    models.FieldKey = "governingDocument"
	LastAGMDate          models.FieldKey = "lastAgmDate"
)

// Project overview
const (
	ProjectTitle    models.FieldKey = "projectTitle"
	ProjectSummary  models.FieldKey = "projectSummary"
	ProjectCategory models.FieldKey = "projectCategory"
)

// Location and beneficiaries
const (
	ProjectLocation     models.FieldKey = "projectLocation"
	TargetBeneficiaries models.FieldKey = "targetBeneficiaries"
	BeneficiaryGroup    models.FieldKey = "beneficiaryGroup"
)

// Timeline
const (
	ProjectStartDate models.FieldKey = "projectStartDate"
	ProjectEndDate   models.FieldKey = "projectEndDate"
	DurationMonths   models.FieldKey = "durationMonths"
)

// Budget
const (
	RequestedAmount  models.FieldKey = "requestedAmount"
	TotalProjectCost models.FieldKey = "totalProjectCost"
	CoFundingAmount  models.FieldKey = "coFundingAmount"
)

// Financial management
const (
	HasBankAccount     models.FieldKey = "hasBankAccount"
	BankName           models.FieldKey = "bankName"
	AnnualRevenue      models.FieldKey = "annualRevenue"
	HasAuditedAccounts models.FieldKey = "hasAuditedAccounts"
	AuditedAccounts    models.FieldKey = "auditedAccounts"
)

// Compliance
const (
	ComplianceCategory       models.FieldKey = "complianceCategory"
	TaxClearanceCertificate  models.FieldKey = "taxClearanceCertificate"
	EnvironmentalImpact      models.FieldKey = "environmentalImpact"
	EnvironmentalCertificate models.FieldKey = "environmentalCertificate"
)

// Attachments
const (
	RegistrationCertificate models.FieldKey = "registrationCertificate"
	ProjectProposal         models.FieldKey = "projectProposal"
	BudgetBreakdown         models.FieldKey = "budgetBreakdown"
)

// Declaration
const (
	DeclarantName       models.FieldKey = "declarantName"
	DeclarantTitle      models.FieldKey = "declarantTitle"
	DeclarationAccepted models.FieldKey = "declarationAccepted"
	DeclarationDate     models.FieldKey = "declarationDate"
)

// Option codes of the scored select fields.
const (
	AgeUnder1 = "under-1"
	Age1To3   = "1-3"
	Age4To7   = "4-7"
	Age8To15  = "8-15"
	AgeOver15 = "over-15"

	TypeCommunityBased = "cbo"
	TypeNonProfit      = "ngo"
	TypeCooperative    = "cooperative"
	TypePrivate        = "private"

	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)
