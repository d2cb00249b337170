// Package workflow hands submitted applications to the review process.
package workflow

import (
	"context"

	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
)

// ProcessStarter starts a process instance and returns its key.
// *camunda.Client implements it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// ReviewStarter is a submission listener that starts one review process
// instance per submitted application, with the submission document as the
// process variables.
type ReviewStarter struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewReviewStarter(starter ProcessStarter, processID string, log logger.Logger) *ReviewStarter {
	return &ReviewStarter{
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "review-workflow", "processId": processID}),
	}
}

func (r *ReviewStarter) Name() string {
	return "review-workflow"
}

func (r *ReviewStarter) ApplicationSubmitted(ctx context.Context, doc models.SubmissionDocument) error {
	key, err := r.starter.StartProcess(ctx, r.processID, doc.Variables())
	if err != nil {
		return err
	}

	r.logger.Info("review process started", map[string]interface{}{
		"applicationId":      doc.ApplicationID,
		"processInstanceKey": key,
	})
	return nil
}
