package registry

import (
	"regexp"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard/validation"
)

var registrationNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/\-]{3,29}$`)

// Option sets of the select fields.
var (
	OrganizationTypes   = []string{TypeCommunityBased, TypeNonProfit, TypeCooperative, TypePrivate}
	OrganizationAges    = []string{AgeUnder1, Age1To3, Age4To7, Age8To15, AgeOver15}
	OperationalStatuses = []string{StatusActive, StatusInactive, StatusSuspended}
	ProjectCategories   = []string{"agriculture", "education", "health", "water-sanitation", "livelihoods", "environment", "other"}
	BeneficiaryGroups   = []string{"youth", "women", "children", "elderly", "persons-with-disabilities", "general"}
	ImpactLevels        = []string{"low", "medium", "high"}
	ComplianceOptions   = []string{"applicable", "exempt"}
)

func text(key models.FieldKey, label string, required bool, rules ...validation.Rule) FieldDescriptor {
	return FieldDescriptor{Key: key, Label: label, Type: models.KindText, Required: required, Rules: rules}
}

func number(key models.FieldKey, label string, required bool, rules ...validation.Rule) FieldDescriptor {
	return FieldDescriptor{Key: key, Label: label, Type: models.KindNumber, Required: required, Rules: rules}
}

func boolean(key models.FieldKey, label string, required bool, rules ...validation.Rule) FieldDescriptor {
	return FieldDescriptor{Key: key, Label: label, Type: models.KindBoolean, Required: required, Rules: rules}
}

func date(key models.FieldKey, label string, required bool, rules ...validation.Rule) FieldDescriptor {
	return FieldDescriptor{Key: key, Label: label, Type: models.KindDate, Required: required, Rules: rules}
}

func file(key models.FieldKey, label string, required bool, rules ...validation.Rule) FieldDescriptor {
	return FieldDescriptor{Key: key, Label: label, Type: models.KindFile, Required: required, Rules: rules}
}

func choice(key models.FieldKey, label string, required bool, options []string) FieldDescriptor {
	return FieldDescriptor{
		Key:      key,
		Label:    label,
		Type:     models.KindText,
		Required: required,
		Options:  options,
		Rules:    []validation.Rule{validation.OneOf(options...)},
	}
}

var defaultRegistry = MustNew(
	StepDescriptor{Number: 1, Key: "organization", Title: "Organization profile", Fields: []FieldDescriptor{
		text(OrganizationName, "Organization name", true),
		text(RegistrationNumber, "Registration number", true, validation.Pattern("registration number", registrationNumberPattern)),
		choice(OrganizationType, "Organization type", true, OrganizationTypes),
		choice(OrganizationAge, "Years in operation", true, OrganizationAges),
		choice(OperationalStatus, "Operational status", true, OperationalStatuses),
		number(YearEstablished, "Year established", false, validation.NumericRange(1900, 2100)),
	}},
	StepDescriptor{Number: 2, Key: "contact", Title: "Contact details", Fields: []FieldDescriptor{
		text(ContactPerson, "Contact person", true),
		text(ContactEmail, "Contact email", true, validation.Pattern("email address", validation.Email)),
		text(ContactPhone, "Contact phone", true, validation.Pattern("phone number", validation.Phone)),
		text(PhysicalAddress, "Physical address", true),
		text(Website, "Website", false, validation.Pattern("URL", validation.URL)),
	}},
	StepDescriptor{Number: 3, Key: "governance", Title: "Governance", Fields: []FieldDescriptor{
		number(BoardSize, "Board size", true, validation.NumericRange(1, 100)),
		boolean(HasGoverningDocument, "Has a governing document", true),
		file(GoverningDocument, "Governing document", false, validation.ConditionallyRequired(HasGoverningDocument, "true")),
		date(LastAGMDate, "Date of last annual general meeting", false),
	}},
	StepDescriptor{Number: 4, Key: "project", Title: "Project overview", Fields: []FieldDescriptor{
		text(ProjectTitle, "Project title", true),
		text(ProjectSummary, "Project summary", true),
		choice(ProjectCategory, "Project category", true, ProjectCategories),
	}},
	StepDescriptor{Number: 5, Key: "beneficiaries", Title: "Location and beneficiaries", Fields: []FieldDescriptor{
		text(ProjectLocation, "Project location", true),
		number(TargetBeneficiaries, "Number of beneficiaries", true, validation.AtLeast(1)),
		choice(BeneficiaryGroup, "Primary beneficiary group", true, BeneficiaryGroups),
	}},
	StepDescriptor{Number: 6, Key: "timeline", Title: "Timeline", Fields: []FieldDescriptor{
		date(ProjectStartDate, "Start date", true),
		date(ProjectEndDate, "End date", true),
		number(DurationMonths, "Duration in months", true, validation.NumericRange(1, 60)),
	}},
	StepDescriptor{Number: 7, Key: "budget", Title: "Budget", Fields: []FieldDescriptor{
		number(RequestedAmount, "Requested amount", true, validation.AtLeast(0)),
		number(TotalProjectCost, "Total project cost", true, validation.AtLeast(0)),
		number(CoFundingAmount, "Co-funding amount", false, validation.AtLeast(0)),
	}},
	StepDescriptor{Number: 8, Key: "finance", Title: "Financial management", Fields: []FieldDescriptor{
		boolean(HasBankAccount, "Has a bank account", true),
		text(BankName, "Bank name", false, validation.ConditionallyRequired(HasBankAccount, "true")),
		number(AnnualRevenue, "Annual revenue", false, validation.AtLeast(0)),
		boolean(HasAuditedAccounts, "Has audited accounts", true),
		file(AuditedAccounts, "Audited accounts", false, validation.ConditionallyRequired(HasAuditedAccounts, "true")),
	}},
	StepDescriptor{Number: 9, Key: "compliance", Title: "Compliance", Fields: []FieldDescriptor{
		choice(ComplianceCategory, "Tax compliance", true, ComplianceOptions),
		file(TaxClearanceCertificate, "Tax clearance certificate", false, validation.ConditionallyRequired(ComplianceCategory, "applicable")),
		choice(EnvironmentalImpact, "Environmental impact", true, ImpactLevels),
		file(EnvironmentalCertificate, "Environmental impact certificate", false, validation.ConditionallyRequired(EnvironmentalImpact, "medium", "high")),
	}},
	StepDescriptor{Number: 10, Key: "attachments", Title: "Attachments", Fields: []FieldDescriptor{
		file(RegistrationCertificate, "Registration certificate", true),
		file(ProjectProposal, "Project proposal", true),
		file(BudgetBreakdown, "Budget breakdown", true),
	}},
	StepDescriptor{Number: 11, Key: "declaration", Title: "Declaration", Fields: []FieldDescriptor{
		text(DeclarantName, "Declarant name", true),
		text(DeclarantTitle, "Declarant title", true),
		boolean(DeclarationAccepted, "Declaration accepted", true, validation.OneOf("true")),
		date(DeclarationDate, "Declaration date", true),
	}},
)

// Default returns the grant application registry.
func Default() *Registry {
	return defaultRegistry
}
