// Package scoring derives the organizational auto-scores from answers.
package scoring

import (
	"strings"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard/registry"
	"grant-intake/internal/wizard/validation"
)

var dependencies = []models.FieldKey{
	registry.OrganizationAge,
	registry.OrganizationType,
	registry.OperationalStatus,
}

var typeScores = map[string]int{
	registry.TypeCommunityBased: 5,
	"community-based":           5,
	registry.TypeNonProfit:      4,
	"non-profit":                4,
	"nonprofit":                 4,
	registry.TypeCooperative:    3,
	"co-operative":              3,
	registry.TypePrivate:        2,
}

var statusScores = map[string]int{
	registry.StatusActive:    5,
	registry.StatusInactive:  2,
	registry.StatusSuspended: 1,
}

// Dependencies lists the answers the scores are derived from.
func Dependencies() []models.FieldKey {
	out := make([]models.FieldKey, len(dependencies))
	copy(out, dependencies)
	return out
}

// IsDependency reports whether a write to key changes the scores.
func IsDependency(key models.FieldKey) bool {
	for _, d := range dependencies {
		if d == key {
			return true
		}
	}
	return false
}

// Calculate derives every score from answers. It is total: unset or
// unrecognized answers score 0.
func Calculate(answers map[models.FieldKey]models.Value) models.Scores {
	s := models.Scores{
		OrganizationAgeAutoScore:   AgeScore(answers[registry.OrganizationAge]),
		OrganizationTypeAutoScore:  TypeScore(answers[registry.OrganizationType]),
		OperationalStatusAutoScore: StatusScore(answers[registry.OperationalStatus]),
	}
	s.TotalScore = s.OrganizationAgeAutoScore + s.OrganizationTypeAutoScore + s.OperationalStatusAutoScore
	return s
}

// AgeScore maps an age bracket to 1-5. A bare number of years is banded
// the same way.
func AgeScore(v models.Value) int {
	code := normalize(v)
	switch code {
	case "":
		return 0
	case registry.AgeUnder1:
		return 1
	case registry.Age1To3:
		return 2
	case registry.Age4To7:
		return 3
	case registry.Age8To15:
		return 4
	case registry.AgeOver15:
		return 5
	}

	years, ok := validation.ParseNumber(models.Text(code))
	if !ok || years < 0 {
		return 0
	}
	if years > 15 {
		return 5
	} else if years >= 8 {
		return 4
	} else if years >= 4 {
		return 3
	} else if years >= 1 {
		return 2
	}
	return 1
}

// TypeScore maps the organization type: community-based 5, non-profit 4,
// cooperative 3, private 2.
func TypeScore(v models.Value) int {
	return typeScores[normalize(v)]
}

// StatusScore maps the operational status: active 5, inactive 2,
// suspended 1.
func StatusScore(v models.Value) int {
	return statusScores[normalize(v)]
}

func normalize(v models.Value) string {
	if v.IsBlank() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.String()))
}
