package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-msg-1")}, nil
}

func testDocument() models.SubmissionDocument {
	return models.SubmissionDocument{
		ApplicationID: "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a",
		Slug:          "kibera-youth-0d6f7c1e",
		Answers: map[string]interface{}{
			"organizationName": "Kibera Youth",
			"contactPerson":    "Amina Otieno",
			"contactEmail":     "amina@kiberayouth.org",
			"contactPhone":     "+254 712-345678",
			"projectTitle":     "Clean Water Kiosks",
		},
		Scores:      models.Scores{TotalScore: 14},
		SubmittedAt: time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_SendsEmailAndSMS(t *testing.T) {
	sesFake, snsFake := &fakeSES{}, &fakeSNS{}
	n := New(Config{EmailEnabled: true, FromEmail: "grants@example.org", SMSEnabled: true, SenderID: "GRANTS"},
		sesFake, snsFake, logger.NewTestLogger(t))

	results := n.Send(context.Background(), testDocument())
	require.Len(t, results, 2)
	assert.Equal(t, models.NotificationSent, results[0].Status)
	assert.Equal(t, "ses-msg-1", results[0].MessageID)
	assert.Equal(t, models.NotificationSent, results[1].Status)
	assert.Equal(t, "sns-msg-1", results[1].MessageID)

	require.Len(t, sesFake.inputs, 1)
	email := sesFake.inputs[0]
	assert.Equal(t, []string{"amina@kiberayouth.org"}, email.Destination.ToAddresses)
	assert.Equal(t, "Grant application received: Clean Water Kiosks", *email.Message.Subject.Data)
	body := *email.Message.Body.Text.Data
	assert.Contains(t, body, "Dear Amina Otieno")
	assert.Contains(t, body, "kibera-youth-0d6f7c1e")
	assert.NotContains(t, body, "{{")

	require.Len(t, snsFake.inputs, 1)
	assert.Equal(t, "+254712345678", *snsFake.inputs[0].PhoneNumber)
	assert.True(t, strings.HasPrefix(*snsFake.inputs[0].Message, "Kibera Youth:"))

	assert.NoError(t, n.ApplicationSubmitted(context.Background(), testDocument()))
}

func TestNotifier_DisabledAndSkipped(t *testing.T) {
	sesFake, snsFake := &fakeSES{}, &fakeSNS{}
	n := New(Config{EmailEnabled: true, FromEmail: "grants@example.org"}, sesFake, snsFake, logger.NewTestLogger(t))

	doc := testDocument()
	delete(doc.Answers, "contactEmail")

	results := n.Send(context.Background(), doc)
	assert.Equal(t, models.NotificationSkipped, results[0].Status)
	assert.Equal(t, models.NotificationDisabled, results[1].Status)
	assert.Empty(t, sesFake.inputs)
	assert.Empty(t, snsFake.inputs)
	assert.NoError(t, n.ApplicationSubmitted(context.Background(), doc))
}

func TestNotifier_FailureIsReported(t *testing.T) {
	sesFake := &fakeSES{err: errors.New("MessageRejected: Email address is not verified")}
	snsFake := &fakeSNS{}
	n := New(Config{EmailEnabled: true, FromEmail: "grants@example.org", SMSEnabled: true}, sesFake, snsFake, logger.NewTestLogger(t))

	results := n.Send(context.Background(), testDocument())
	assert.Equal(t, models.NotificationFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "MessageRejected")
	assert.Equal(t, models.NotificationSent, results[1].Status, "sms still goes out")

	err := n.ApplicationSubmitted(context.Background(), testDocument())
	require.Error(t, err)
	se, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, se.Code)
}

func TestNotifier_LogsChannelSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sesFake := &fakeSES{err: errors.New("MessageRejected: Email address is not verified")}
	n := New(Config{EmailEnabled: true, FromEmail: "grants@example.org"}, sesFake, &fakeSNS{},
		logger.NewZapAdapter(zap.New(core)))

	require.Error(t, n.ApplicationSubmitted(context.Background(), testDocument()))

	entries := logs.FilterMessage("confirmation delivery incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a", fields["applicationId"])
	assert.Equal(t, map[string]string{
		"status":    models.NotificationFailed,
		"recipient": "amina@kiberayouth.org",
		"error":     "MessageRejected: Email address is not verified",
	}, fields["email"])
	assert.Equal(t, map[string]string{
		"status":    models.NotificationDisabled,
		"recipient": "+254 712-345678",
	}, fields["sms"])

	sesFake.err = nil
	require.NoError(t, n.ApplicationSubmitted(context.Background(), testDocument()))
	entries = logs.FilterMessage("confirmation delivery summary").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ses-msg-1", entries[0].ContextMap()["email"].(map[string]string)["messageId"])
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Hello {{name}}, ref {{ref}}{{missing}}.", map[string]interface{}{
		"name": "Amina",
		"ref":  42,
	})
	assert.Equal(t, "Hello Amina, ref 42.", out)
}
