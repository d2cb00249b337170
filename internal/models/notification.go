package models

// Notification records one confirmation sent to an applicant.
type Notification struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	Channel       string `json:"channel"` // "email", "sms"
	Recipient     string `json:"recipient"`
	Status        string `json:"status"` // "sent", "failed", "disabled", "skipped"
	MessageID     string `json:"messageId,omitempty"`
	Error         string `json:"error,omitempty"`
	SentAt        string `json:"sentAt,omitempty"`
}

// Notification delivery states.
const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
	NotificationSkipped  = "skipped"
)
