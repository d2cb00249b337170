package wizard

import (
	"context"

	"grant-intake/internal/models"
)

// SubmissionListener is told about every application accepted by the
// gateway. Listener errors are logged by the machine and never undo the
// submission.
type SubmissionListener interface {
	Name() string
	ApplicationSubmitted(ctx context.Context, doc models.SubmissionDocument) error
}

// ListenerFunc adapts a function to SubmissionListener.
type ListenerFunc struct {
	ListenerName string
	Fn           func(ctx context.Context, doc models.SubmissionDocument) error
}

func (f ListenerFunc) Name() string {
	return f.ListenerName
}

func (f ListenerFunc) ApplicationSubmitted(ctx context.Context, doc models.SubmissionDocument) error {
	return f.Fn(ctx, doc)
}
