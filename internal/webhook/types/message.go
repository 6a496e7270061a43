package types

// MessageType is the envelope "Type" of a push notification
type MessageType string

const (
	MessageTypeSubscriptionConfirmation MessageType = "SubscriptionConfirmation"
	MessageTypeNotification             MessageType = "Notification"
	MessageTypeUnsubscribeConfirmation  MessageType = "UnsubscribeConfirmation"
)

// Known reports whether the provider signs messages of this type
func (t MessageType) Known() bool {
	switch t {
	case MessageTypeSubscriptionConfirmation, MessageTypeNotification, MessageTypeUnsubscribeConfirmation:
		return true
	}
	return false
}

// Message is the notification envelope posted to the webhook endpoint.
// Field names follow the provider's wire format.
type Message struct {
	Type             MessageType `json:"Type"`
	MessageID        string      `json:"MessageId"`
	Token            string      `json:"Token,omitempty"`
	TopicArn         string      `json:"TopicArn"`
	Subject          string      `json:"Subject,omitempty"`
	Message          string      `json:"Message"`
	Timestamp        string      `json:"Timestamp"`
	SignatureVersion string      `json:"SignatureVersion"`
	Signature        string      `json:"Signature"`
	SigningCertURL   string      `json:"SigningCertURL"`
	SubscribeURL     string      `json:"SubscribeURL,omitempty"`
	UnsubscribeURL   string      `json:"UnsubscribeURL,omitempty"`
}

// WebhookEventStatus is the processing state of a logged webhook event
type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// Valid reports whether s is a known status
func (s WebhookEventStatus) Valid() bool {
	switch s {
	case WebhookEventStatusReceived, WebhookEventStatusProcessed, WebhookEventStatusFailed:
		return true
	}
	return false
}

func (s WebhookEventStatus) String() string {
	return string(s)
}
