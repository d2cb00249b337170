package workflow

import (
	"context"
	"testing"
	"time"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	processID string
	variables map[string]interface{}
	err       error
}

func (f *fakeStarter) StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	f.processID = processID
	f.variables = variables
	if f.err != nil {
		return 0, f.err
	}
	return 2251799813685249, nil
}

func sampleDocument() models.SubmissionDocument {
	return models.SubmissionDocument{
		ApplicationID: "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a",
		Slug:          "kibera-youth-0d6f7c1e",
		Answers:       map[string]interface{}{"organizationName": "Kibera Youth"},
		Scores:        models.Scores{TotalScore: 14},
		SubmittedAt:   time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReviewStarter_StartsProcessWithDocument(t *testing.T) {
	starter := &fakeStarter{}
	r := NewReviewStarter(starter, "grant-application-review", logger.NewTestLogger(t))

	require.NoError(t, r.ApplicationSubmitted(context.Background(), sampleDocument()))
	assert.Equal(t, "review-workflow", r.Name())
	assert.Equal(t, "grant-application-review", starter.processID)
	assert.Equal(t, "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a", starter.variables["applicationId"])
	assert.Equal(t, "2024-12-01T10:00:00Z", starter.variables["submittedAt"])
	scores := starter.variables["derivedScores"].(map[string]interface{})
	assert.Equal(t, 14, scores["totalScore"])
}

func TestReviewStarter_PropagatesFailure(t *testing.T) {
	starter := &fakeStarter{err: errors.NewExternalServiceError("zeebe", assert.AnError)}
	r := NewReviewStarter(starter, "grant-application-review", logger.NewTestLogger(t))

	err := r.ApplicationSubmitted(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
