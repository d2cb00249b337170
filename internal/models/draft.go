package models

import (
	"encoding/json"
	"sort"
	"time"
)

type DraftStatus string

const (
	StatusDraft     DraftStatus = "draft"
	StatusSubmitted DraftStatus = "submitted"
)

// Scores holds the derived auto-scores. TotalScore is always the sum of
// the three sub-scores.
type Scores struct {
	OrganizationAgeAutoScore   int `json:"organizationAgeAutoScore"`
	OrganizationTypeAutoScore  int `json:"organizationTypeAutoScore"`
	OperationalStatusAutoScore int `json:"operationalStatusAutoScore"`
	TotalScore                 int `json:"totalScore"`
}

// StepSet is a sorted set of step numbers.
type StepSet []int

func (s StepSet) Has(step int) bool {
	i := sort.SearchInts(s, step)
	return i < len(s) && s[i] == step
}

// Add returns the set with step included.
func (s StepSet) Add(step int) StepSet {
	i := sort.SearchInts(s, step)
	if i < len(s) && s[i] == step {
		return s
	}
	out := make(StepSet, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, step)
	return append(out, s[i:]...)
}

func (s StepSet) Len() int {
	return len(s)
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(s))
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out StepSet
	for _, step := range raw {
		out = out.Add(step)
	}
	*s = out
	return nil
}

// ApplicationDraft is one grant application, in progress or submitted.
type ApplicationDraft struct {
	ID             string             `json:"id"`
	Slug           string             `json:"slug"`
	Answers        map[FieldKey]Value `json:"answers"`
	CurrentStep    int                `json:"currentStep"`
	CompletedSteps StepSet            `json:"completedSteps"`
	DerivedScores  Scores             `json:"derivedScores"`
	Status         DraftStatus        `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	LastSavedAt    *time.Time         `json:"lastSavedAt,omitempty"`
	SubmittedAt    *time.Time         `json:"submittedAt,omitempty"`
}

// Clone returns a deep copy.
func (d *ApplicationDraft) Clone() *ApplicationDraft {
	if d == nil {
		return nil
	}
	out := *d
	out.Answers = make(map[FieldKey]Value, len(d.Answers))
	for k, v := range d.Answers {
		if v.File != nil {
			ref := *v.File
			v.File = &ref
		}
		out.Answers[k] = v
	}
	if d.CompletedSteps != nil {
		out.CompletedSteps = append(StepSet(nil), d.CompletedSteps...)
	}
	if d.LastSavedAt != nil {
		t := *d.LastSavedAt
		out.LastSavedAt = &t
	}
	if d.SubmittedAt != nil {
		t := *d.SubmittedAt
		out.SubmittedAt = &t
	}
	return &out
}

// Summary projects the draft into a listing row.
func (d *ApplicationDraft) Summary(organizationName FieldKey) DraftSummary {
	return DraftSummary{
		ID:               d.ID,
		Slug:             d.Slug,
		Status:           d.Status,
		CurrentStep:      d.CurrentStep,
		CompletedCount:   d.CompletedSteps.Len(),
		TotalScore:       d.DerivedScores.TotalScore,
		OrganizationName: d.Answers[organizationName].String(),
		UpdatedAt:        d.UpdatedAt,
		SubmittedAt:      d.SubmittedAt,
	}
}

// DraftSummary is one row of the application listing.
type DraftSummary struct {
	ID               string      `json:"id"`
	Slug             string      `json:"slug"`
	Status           DraftStatus `json:"status"`
	CurrentStep      int         `json:"currentStep"`
	CompletedCount   int         `json:"completedCount"`
	TotalScore       int         `json:"totalScore"`
	OrganizationName string      `json:"organizationName,omitempty"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	SubmittedAt      *time.Time  `json:"submittedAt,omitempty"`
}

// SubmissionDocument is the frozen, flattened answer set produced when an
// application is submitted.
type SubmissionDocument struct {
	ApplicationID string                 `json:"applicationId"`
	Slug          string                 `json:"slug"`
	Answers       map[string]interface{} `json:"answers"`
	Scores        Scores                 `json:"derivedScores"`
	SubmittedAt   time.Time              `json:"submittedAt"`
}

// NewSubmissionDocument flattens the draft's answers. Explicitly cleared
// fields are carried as null.
func NewSubmissionDocument(d *ApplicationDraft, submittedAt time.Time) SubmissionDocument {
	answers := make(map[string]interface{}, len(d.Answers))
	for k, v := range d.Answers {
		answers[string(k)] = v.Plain()
	}
	return SubmissionDocument{
		ApplicationID: d.ID,
		Slug:          d.Slug,
		Answers:       answers,
		Scores:        d.DerivedScores,
		SubmittedAt:   submittedAt,
	}
}

// Variables renders the document as a generic map, the shape workflow
// engines and search indexes expect.
func (s SubmissionDocument) Variables() map[string]interface{} {
	return map[string]interface{}{
		"applicationId": s.ApplicationID,
		"slug":          s.Slug,
		"answers":       s.Answers,
		"derivedScores": map[string]interface{}{
			"organizationAgeAutoScore":   s.Scores.OrganizationAgeAutoScore,
			"organizationTypeAutoScore":  s.Scores.OrganizationTypeAutoScore,
			"operationalStatusAutoScore": s.Scores.OperationalStatusAutoScore,
			"totalScore":                 s.Scores.TotalScore,
		},
		"submittedAt": s.SubmittedAt.Format(time.RFC3339),
	}
}
