// internal/channels/channel.go
package channels

// Channel names
const (
	ChannelPush     = "push"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Status of a single send attempt.
type Status string

const (
	// StatusSent: the provider accepted the message.
	StatusSent Status = "sent"
	// StatusFailed: the provider rejected it or the call failed.
	StatusFailed Status = "failed"
	// StatusSkipped: the channel is unconfigured; the message was logged,
	// not delivered. This is a designed degraded mode, not an error.
	StatusSkipped Status = "skipped"
)

// Result is the uniform outcome of one send attempt. Senders never return
// errors to the caller; the dispatcher's control flow is identical whether a
// channel is configured or not.
type Result struct {
	Channel    string `json:"channel"`
	Status     Status `json:"status"`
	ProviderID string `json:"providerId,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Delivered reports whether the provider accepted the message.
func (r Result) Delivered() bool {
	return r.Status == StatusSent
}
