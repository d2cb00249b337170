// Package notify sends the applicant a confirmation once an application is
// submitted: an email through SES and, when enabled, an SMS through SNS.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grant-intake/internal/common/aws"
	"grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
	"grant-intake/internal/wizard/registry"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SenderID     string
	Timeout      time.Duration
}

const (
	emailSubject = "Grant application received: {{projectTitle}}"
	emailBody    = `Dear {{contactPerson}},

Thank you for submitting the grant application "{{projectTitle}}" on behalf of {{organizationName}}.

Your reference is {{slug}}. Please quote it in any correspondence about this application.

Submitted at {{submittedAt}}.`
	smsBody = "{{organizationName}}: grant application {{slug}} received. Thank you."
)

// Notifier is a submission listener sending confirmations.
type Notifier struct {
	cfg    Config
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func New(cfg Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

func (n *Notifier) Name() string {
	return "confirmation-notifier"
}

// ApplicationSubmitted sends the confirmations, logs one summary line with
// the outcome of every channel and reports the first channel that failed.
func (n *Notifier) ApplicationSubmitted(ctx context.Context, doc models.SubmissionDocument) error {
	results := n.Send(ctx, doc)

	var firstErr error
	summary := map[string]interface{}{"applicationId": doc.ApplicationID}
	for _, sent := range results {
		summary[sent.Channel] = channelSummary(sent)
		if sent.Status == models.NotificationFailed && firstErr == nil {
			firstErr = errors.NewNotificationSendFailedError(sent.Channel, fmt.Errorf("%s", sent.Error))
		}
	}
	if firstErr != nil {
		n.logger.Warn("confirmation delivery incomplete", summary)
		return firstErr
	}
	n.logger.Info("confirmation delivery summary", summary)
	return nil
}

func channelSummary(sent models.Notification) map[string]string {
	out := map[string]string{"status": sent.Status}
	if sent.Recipient != "" {
		out["recipient"] = sent.Recipient
	}
	if sent.MessageID != "" {
		out["messageId"] = sent.MessageID
	}
	if sent.Error != "" {
		out["error"] = sent.Error
	}
	return out
}

// Send delivers every enabled channel and returns one record per channel.
// A failing channel does not stop the others.
func (n *Notifier) Send(ctx context.Context, doc models.SubmissionDocument) []models.Notification {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	data := templateData(doc)
	email := answer(doc, registry.ContactEmail)
	phone := answer(doc, registry.ContactPhone)

	results := []models.Notification{
		n.deliver(doc, ChannelEmail, email, n.cfg.EmailEnabled, func() (string, error) {
			out, err := n.ses.SendEmail(ctx, aws.TextEmail(n.cfg.FromEmail, email,
				renderTemplate(emailSubject, data), renderTemplate(emailBody, data)))
			if err != nil {
				return "", err
			}
			return stringValue(out.MessageId), nil
		}),
		n.deliver(doc, ChannelSMS, phone, n.cfg.SMSEnabled, func() (string, error) {
			out, err := n.sns.Publish(ctx, aws.TextMessage(normalizePhone(phone), n.cfg.SenderID,
				renderTemplate(smsBody, data)))
			if err != nil {
				return "", err
			}
			return stringValue(out.MessageId), nil
		}),
	}
	return results
}

func (n *Notifier) deliver(doc models.SubmissionDocument, channel, recipient string, enabled bool, send func() (string, error)) models.Notification {
	rec := models.Notification{
		ID:            uuid.New().String(),
		ApplicationID: doc.ApplicationID,
		Channel:       channel,
		Recipient:     recipient,
	}
	switch {
	case !enabled:
		rec.Status = models.NotificationDisabled
		return rec
	case recipient == "":
		rec.Status = models.NotificationSkipped
		return rec
	}

	messageID, err := send()
	if err != nil {
		n.logger.Error("notification send failed", map[string]interface{}{
			"channel":       channel,
			"applicationId": doc.ApplicationID,
			"error":         err,
		})
		rec.Status = models.NotificationFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Status = models.NotificationSent
	rec.MessageID = messageID
	rec.SentAt = time.Now().UTC().Format(time.RFC3339)
	n.logger.Info("notification sent", map[string]interface{}{
		"channel":       channel,
		"applicationId": doc.ApplicationID,
		"messageId":     messageID,
	})
	return rec
}

func templateData(doc models.SubmissionDocument) map[string]interface{} {
	return map[string]interface{}{
		"contactPerson":    answer(doc, registry.ContactPerson),
		"organizationName": answer(doc, registry.OrganizationName),
		"projectTitle":     answer(doc, registry.ProjectTitle),
		"slug":             doc.Slug,
		"submittedAt":      doc.SubmittedAt.Format(time.RFC1123),
	}
}

func answer(doc models.SubmissionDocument, key models.FieldKey) string {
	s, _ := doc.Answers[string(key)].(string)
	return strings.TrimSpace(s)
}

// normalizePhone strips the spaces and dashes the phone rule allows, since
// SNS expects E.164.
func normalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(phone)
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
