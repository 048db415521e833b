// internal/sweep/sweep.go

// Package sweep implements the daily absence batch: students with no
// attendance record for the day get a default Absent row and a notification.
package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/common/logger"
	"school-notify/internal/common/metrics"
	"school-notify/internal/dispatch"
	"school-notify/internal/models"
)

// Notifier is the slice of the dispatcher the sweep uses.
type Notifier interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Report, error)
}

// Summary reports one sweep run.
type Summary struct {
	Date     string
	Scanned  int
	Marked   int
	Notified int
	Failed   int
}

// Sweep marks unrecorded students absent and notifies their guardians. The
// attendance insert doubles as the idempotency guard: once a student has a
// row for the date, the next run's no-record query excludes them, so a
// second run on the same day re-notifies nobody.
type Sweep struct {
	db       *sql.DB
	notifier Notifier
	logger   logger.Logger
}

func New(db *sql.DB, notifier Notifier, log logger.Logger) *Sweep {
	return &Sweep{
		db:       db,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "sweep"}),
	}
}

// Run executes one sweep for the given calendar date. Students are handled
// independently and sequentially; a per-student failure is counted and the
// run continues. The returned error covers only the absent-set query.
func (s *Sweep) Run(ctx context.Context, day time.Time) (Summary, error) {
	date := day.Format("2006-01-02")
	summary := Summary{Date: date}

	absent, err := s.findUnrecorded(ctx, date)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		return summary, apperrors.NewSweepFailedError(err)
	}
	summary.Scanned = len(absent)

	for _, student := range absent {
		if err := s.markAbsent(ctx, student, date); err != nil {
			s.logger.WithError(err).Error("absent mark failed", map[string]interface{}{
				"studentId": student.ProfileID,
				"date":      date,
			})
			summary.Failed++
			continue
		}
		summary.Marked++
		metrics.SweepStudentsMarked.Inc()

		if s.notify(ctx, student, date) {
			summary.Notified++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("sweep complete", map[string]interface{}{
		"date":     date,
		"scanned":  summary.Scanned,
		"marked":   summary.Marked,
		"notified": summary.Notified,
		"failed":   summary.Failed,
	})
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	return summary, nil
}

// findUnrecorded returns active students with no attendance row for the
// date, from any status: a genuine check-in excludes a student exactly like
// a previous sweep's Absent row does.
func (s *Sweep) findUnrecorded(ctx context.Context, date string) ([]models.AbsentStudent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.school_id, s.name, s.admission_no, s.guardian_phone
		 FROM students s
		 WHERE s.active
		   AND NOT EXISTS (
		     SELECT 1 FROM attendance a
		     WHERE a.student_id = s.id AND a.date = $1
		   )
		 ORDER BY s.id`,
		date,
	)
	if err != nil {
		return nil, apperrors.NewQueryFailedError(err)
	}
	defer rows.Close()

	var out []models.AbsentStudent
	for rows.Next() {
		var st models.AbsentStudent
		if err := rows.Scan(&st.ProfileID, &st.SchoolID, &st.Name, &st.AdmissionNo, &st.GuardianPhone); err != nil {
			return nil, apperrors.NewQueryFailedError(err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Sweep) markAbsent(ctx context.Context, st models.AbsentStudent, date string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (student_id, school_id, date, status)
		 VALUES ($1, $2, $3, $4)`,
		st.ProfileID, st.SchoolID, date, models.AttendanceAbsent,
	)
	if err != nil {
		return apperrors.NewQueryFailedError(err)
	}
	return nil
}

// notify dispatches one attendance notification. Dispatch failures never
// abort the sweep; they only show up in the summary.
func (s *Sweep) notify(ctx context.Context, st models.AbsentStudent, date string) bool {
	report, err := s.notifier.Dispatch(ctx, dispatch.Request{
		Recipient: st.AdmissionNo,
		RoleHint:  models.RoleStudent,
		Title:     "Attendance Alert",
		Body:      fmt.Sprintf("%s was marked Absent on %s.", st.Name, date),
		Type:      models.TypeAlert,
		Category:  models.CategoryAttendance,
		Phone:     st.GuardianPhone,
		Data: map[string]interface{}{
			"studentName": st.Name,
			"status":      models.AttendanceAbsent,
			"date":        date,
		},
	})
	if err != nil {
		s.logger.WithError(err).Error("absence notification persist failed", map[string]interface{}{
			"admissionNo": st.AdmissionNo,
		})
		return false
	}
	if !report.Persisted {
		s.logger.Warn("absence notification skipped", map[string]interface{}{
			"admissionNo": st.AdmissionNo,
			"outcome":     string(report.Outcome),
		})
		return false
	}
	return true
}
