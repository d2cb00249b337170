package registry

import "grant-intake/internal/models"

// ExampleAnswers returns a complete answer set that passes every step of
// the default registry.
func ExampleAnswers() map[models.FieldKey]models.Value {
	uploaded := func(id, name string) models.Value {
		return models.File(models.FileRef{ID: id, Name: name, ContentType: "application/pdf", Status: models.FileUploaded})
	}
	return map[models.FieldKey]models.Value{
		OrganizationName:   models.Text("Kibera Youth Empowerment Group"),
		RegistrationNumber: models.Text("CBO/2011/0457"),
		OrganizationType:   models.Text(TypeCommunityBased),
		OrganizationAge:    models.Text(Age8To15),
		OperationalStatus:  models.Text(StatusActive),
		YearEstablished:    models.Number(2011),

		ContactPerson:   models.Text("Amina Otieno"),
		ContactEmail:    models.Text("amina@kiberayouth.org"),
		ContactPhone:    models.Text("+254712345678"),
		PhysicalAddress: models.Text("Olympic Estate, Kibera, Nairobi"),

		BoardSize:            models.Number(7),
		HasGoverningDocument: models.Bool(true),
		GoverningDocument:    uploaded("doc-constitution", "constitution.pdf"),

		ProjectTitle:    models.Text("Clean Water Kiosks"),
		ProjectSummary:  models.Text("Install three community-run water kiosks."),
		ProjectCategory: models.Text("water-sanitation"),

		ProjectLocation:     models.Text("Kibera, Nairobi"),
		TargetBeneficiaries: models.Number(1200),
		BeneficiaryGroup:    models.Text("youth"),

		ProjectStartDate: models.Text("2025-01-15"),
		ProjectEndDate:   models.Text("2025-12-15"),
		DurationMonths:   models.Number(11),

		RequestedAmount:  models.Text("1,500,000"),
		TotalProjectCost: models.Number(2000000),
		CoFundingAmount:  models.Number(500000),

		HasBankAccount:     models.Bool(true),
		BankName:           models.Text("Equity Bank"),
		HasAuditedAccounts: models.Bool(false),

		ComplianceCategory:      models.Text("applicable"),
		TaxClearanceCertificate: uploaded("doc-tax", "tax-clearance.pdf"),
		EnvironmentalImpact:     models.Text("low"),

		RegistrationCertificate: uploaded("doc-reg", "registration.pdf"),
		ProjectProposal:         uploaded("doc-proposal", "proposal.pdf"),
		BudgetBreakdown:         uploaded("doc-budget", "budget.xlsx"),

		DeclarantName:       models.Text("Amina Otieno"),
		DeclarantTitle:      models.Text("Chairperson"),
		DeclarationAccepted: models.Bool(true),
		DeclarationDate:     models.Text("2024-11-30"),
	}
}
