package scoring

import (
	"testing"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard/registry"

	"github.com/stretchr/testify/assert"
)

func answers(age, orgType, status string) map[models.FieldKey]models.Value {
	a := map[models.FieldKey]models.Value{}
	if age != "" {
		a[registry.OrganizationAge] = models.Text(age)
	}
	if orgType != "" {
		a[registry.OrganizationType] = models.Text(orgType)
	}
	if status != "" {
		a[registry.OperationalStatus] = models.Text(status)
	}
	return a
}

func TestCalculate_Scenario(t *testing.T) {
	got := Calculate(answers("8-15", "cbo", "active"))

	assert.Equal(t, models.Scores{
		OrganizationAgeAutoScore:   4,
		OrganizationTypeAutoScore:  5,
		OperationalStatusAutoScore: 5,
		TotalScore:                 14,
	}, got)
}

func TestCalculate_NothingSelected(t *testing.T) {
	assert.Equal(t, models.Scores{}, Calculate(map[models.FieldKey]models.Value{}))
	assert.Equal(t, models.Scores{}, Calculate(nil))
}

func TestCalculate_TotalIsSumAndIdempotent(t *testing.T) {
	ages := append([]string{"", "unknown", "12"}, registry.OrganizationAges...)
	types := append([]string{"", "trust"}, registry.OrganizationTypes...)
	statuses := append([]string{"", "dormant"}, registry.OperationalStatuses...)

	for _, age := range ages {
		for _, ty := range types {
			for _, st := range statuses {
				a := answers(age, ty, st)
				first := Calculate(a)
				assert.Equal(t,
					first.OrganizationAgeAutoScore+first.OrganizationTypeAutoScore+first.OperationalStatusAutoScore,
					first.TotalScore)
				assert.Equal(t, first, Calculate(a))
			}
		}
	}
}

func TestAgeScore(t *testing.T) {
	tests := []struct {
		value models.Value
		want  int
	}{
		{models.Text("under-1"), 1},
		{models.Text("1-3"), 2},
		{models.Text("4-7"), 3},
		{models.Text("8-15"), 4},
		{models.Text("over-15"), 5},
		{models.Text(" 8-15 "), 4},
		{models.Number(0.5), 1},
		{models.Number(10), 4},
		{models.Text("20"), 5},
		{models.Text("-3"), 0},
		{models.Text("ancient"), 0},
		{models.Text("nan"), 0},
		{models.Text("inf"), 0},
		{models.Text("-Infinity"), 0},
		{models.Empty(), 0},
		{models.Value{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.value.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, AgeScore(tt.value))
		})
	}
}

func TestTypeAndStatusScores(t *testing.T) {
	assert.Equal(t, 5, TypeScore(models.Text("cbo")))
	assert.Equal(t, 5, TypeScore(models.Text("Community-Based")))
	assert.Equal(t, 4, TypeScore(models.Text("ngo")))
	assert.Equal(t, 4, TypeScore(models.Text("non-profit")))
	assert.Equal(t, 3, TypeScore(models.Text("cooperative")))
	assert.Equal(t, 2, TypeScore(models.Text("private")))
	assert.Equal(t, 0, TypeScore(models.Text("government")))

	assert.Equal(t, 5, StatusScore(models.Text("active")))
	assert.Equal(t, 2, StatusScore(models.Text("inactive")))
	assert.Equal(t, 1, StatusScore(models.Text("suspended")))
	assert.Equal(t, 0, StatusScore(models.Empty()))
}

func TestIsDependency(t *testing.T) {
	assert.True(t, IsDependency(registry.OrganizationAge))
	assert.True(t, IsDependency(registry.OrganizationType))
	assert.True(t, IsDependency(registry.OperationalStatus))
	assert.False(t, IsDependency(registry.OrganizationName))
	assert.Len(t, Dependencies(), 3)
}
