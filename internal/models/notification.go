// internal/models/notification.go
package models

import "time"

// Notification is one persisted in-app notification row. Created by the
// dispatcher; mutated only by the recipient marking it read; never expired.
type Notification struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // "ALERT" or "INFO"
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification types
const (
	TypeAlert = "ALERT" // event-triggered (fee payment, leave decision, absence)
	TypeInfo  = "INFO"  // generic announcements
)

// Notification categories drive per-channel message templates.
const (
	CategoryAttendance = "attendance"
	CategoryFeeReceipt = "fee_receipt"
	CategoryExamResult = "exam_result"
)
