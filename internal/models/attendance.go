// internal/models/attendance.go
package models

import "time"

// AttendanceRecord is one attendance row for a student on a calendar date.
// The absence sweep inserts rows with StatusAbsent; its existence is the
// sweep's idempotency guard for that date.
type AttendanceRecord struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"studentId"`
	SchoolID  int64     `json:"schoolId"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
}

// Attendance statuses
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
	AttendanceLeave   = "Leave"
)

// AbsentStudent is one row of the sweep's no-attendance-today query: the
// profile fields needed to mark and notify a student.
type AbsentStudent struct {
	ProfileID     int64
	SchoolID      int64
	Name          string
	AdmissionNo   string
	GuardianPhone string
}
