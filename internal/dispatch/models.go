// internal/dispatch/models.go
package dispatch

import (
	"school-notify/internal/channels"
	"school-notify/internal/recipient"
)

// Request describes one notification to deliver. Recipient carries the raw
// reference exactly as the caller holds it (numeric id, "Role_ID" composite,
// admission number or employee code); parsing happens inside Dispatch.
type Request struct {
	Recipient interface{}
	RoleHint  string
	Title     string
	Body      string
	// Type is the persisted row type, "ALERT" or "INFO". Empty defaults
	// to "ALERT".
	Type string
	// Category selects the per-channel message template (attendance,
	// fee_receipt, exam_result). Empty means the raw Body is sent as-is.
	Category string
	// Data fills the category template's placeholders.
	Data map[string]interface{}
	// Phone is the contact number for SMS/WhatsApp delivery. Empty skips
	// both phone channels.
	Phone string
}

// Report is the inspectable outcome of one dispatch: what resolved, what
// persisted, and every channel attempt's result. Channel failures live here,
// never in the error return.
type Report struct {
	Resolved       bool
	Persisted      bool
	Outcome        recipient.Outcome
	AccountID      int64
	NotificationID int64
	Channels       []channels.Result
}

// Delivered reports whether at least one channel accepted the message.
func (r *Report) Delivered() bool {
	for _, c := range r.Channels {
		if c.Delivered() {
			return true
		}
	}
	return false
}
