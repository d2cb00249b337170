package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSON(t *testing.T) {
	raw, err := json.Marshal(Number(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"number","value":3}`, string(raw))

	raw, err = json.Marshal(Empty())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"empty"}`, string(raw))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"date","value":"2019-03-01"}`), &v))
	assert.Equal(t, KindDate, v.Kind)
	assert.Equal(t, "2019-03-01", v.String())

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"file","value":{"id":"f1","name":"cert.pdf","status":"uploaded"}}`), &v))
	require.NotNil(t, v.File)
	assert.Equal(t, FileUploaded, v.File.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"date","value":"2019-13-01"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"number","value":"ten"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"colour","value":"red"}`), &v))
}

func TestValueIsBlank(t *testing.T) {
	assert.True(t, Value{}.IsBlank())
	assert.True(t, Empty().IsBlank())
	assert.True(t, Text("").IsBlank())
	assert.False(t, Text("x").IsBlank())
	assert.False(t, Number(0).IsBlank())
	assert.False(t, Bool(false).IsBlank())
	assert.True(t, Value{Kind: KindFile}.IsBlank())
}

func TestStepSet(t *testing.T) {
	var s StepSet
	s = s.Add(3).Add(1).Add(3).Add(2)
	assert.Equal(t, StepSet{1, 2, 3}, s)
	assert.True(t, s.Has(2))
	assert.False(t, s.Has(4))

	raw, err := json.Marshal(StepSet(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	var decoded StepSet
	require.NoError(t, json.Unmarshal([]byte(`[5,1,5]`), &decoded))
	assert.Equal(t, StepSet{1, 5}, decoded)
}

func TestCloneIsDeep(t *testing.T) {
	saved := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	d := &ApplicationDraft{
		ID:             "a1",
		Answers:        map[FieldKey]Value{"doc": File(FileRef{ID: "f1", Status: FilePending})},
		CompletedSteps: StepSet{1},
		LastSavedAt:    &saved,
	}
	c := d.Clone()
	c.Answers["doc"].File.Status = FileUploaded
	c.Answers["name"] = Text("x")
	c.CompletedSteps[0] = 9
	*c.LastSavedAt = saved.Add(time.Hour)

	assert.Equal(t, FilePending, d.Answers["doc"].File.Status)
	assert.NotContains(t, d.Answers, FieldKey("name"))
	assert.Equal(t, StepSet{1}, d.CompletedSteps)
	assert.Equal(t, saved, *d.LastSavedAt)
}

func TestSubmissionDocument(t *testing.T) {
	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	d := &ApplicationDraft{
		ID:   "a1",
		Slug: "kibera-youth-a1",
		Answers: map[FieldKey]Value{
			"organizationName": Text("Kibera Youth"),
			"boardSize":        Number(7),
			"website":          Empty(),
		},
		DerivedScores: Scores{OrganizationAgeAutoScore: 4, OrganizationTypeAutoScore: 5, OperationalStatusAutoScore: 5, TotalScore: 14},
	}

	doc := NewSubmissionDocument(d, at)
	assert.Equal(t, "Kibera Youth", doc.Answers["organizationName"])
	assert.Equal(t, float64(7), doc.Answers["boardSize"])
	assert.Contains(t, doc.Answers, "website")
	assert.Nil(t, doc.Answers["website"])

	vars := doc.Variables()
	assert.Equal(t, "2024-12-01T10:00:00Z", vars["submittedAt"])
	assert.Equal(t, 14, vars["derivedScores"].(map[string]interface{})["totalScore"])
}
