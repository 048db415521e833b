// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-notify/internal/channels"
	"school-notify/internal/common/config"
	"school-notify/internal/common/logger"
	"school-notify/internal/models"
	"school-notify/internal/recipient"
	"school-notify/internal/templates"
)

// ==========================
// Mock Implementations
// ==========================

type MockPushChannel struct {
	SendFunc func(ctx context.Context, token, title, body string, data map[string]string) channels.Result
}

func (m *MockPushChannel) Send(ctx context.Context, token, title, body string, data map[string]string) channels.Result {
	return m.SendFunc(ctx, token, title, body, data)
}

type MockTextChannel struct {
	SendFunc func(ctx context.Context, phone, message string) channels.Result
}

func (m *MockTextChannel) Send(ctx context.Context, phone, message string) channels.Result {
	return m.SendFunc(ctx, phone, message)
}

func sentPush() *MockPushChannel {
	return &MockPushChannel{
		SendFunc: func(_ context.Context, _, _, _ string, _ map[string]string) channels.Result {
			return channels.Result{Channel: channels.ChannelPush, Status: channels.StatusSent, ProviderID: "push-1"}
		},
	}
}

func unusedText(t *testing.T, channel string) *MockTextChannel {
	return &MockTextChannel{
		SendFunc: func(_ context.Context, _, _ string) channels.Result {
			t.Errorf("%s channel should not have been invoked", channel)
			return channels.Result{Channel: channel, Status: channels.StatusFailed}
		},
	}
}

// ==========================
// Test Helper Functions
// ==========================

func newTestDispatcher(t *testing.T, db *sql.DB, push PushChannel, sms, whatsapp TextChannel, att config.AttendanceConfig) *Dispatcher {
	log := logger.NewTestLogger(t)
	return NewDispatcher(
		recipient.NewResolver(db, log),
		NewStore(db),
		push, sms, whatsapp,
		templates.Defaults(),
		att,
		nil, nil,
		log,
	)
}

const accountQuery = `SELECT a.id, a.role, a.email, a.fcm_token, a.school_id FROM accounts a WHERE a.id = $1`

func accountRows(id int64, role, email, token string, schoolID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "role", "email", "fcm_token", "school_id"}).
		AddRow(id, role, email, token, schoolID)
}

func expectInsert(mock sqlmock.Sqlmock, accountID int64, notifID int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(accountID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(notifID, time.Now()))
}

// ==========================
// Core Functionality Tests
// ==========================

// Admission number "ST-001" resolves through the student profile join to
// account 42, one row is persisted, and push goes out to the account's
// device token.
func TestDispatcher_Dispatch_EndToEnd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM students p`).
		WithArgs("ST-001").
		WillReturnRows(accountRows(42, "STUDENT", "ravi@student.school.com", "tok-abc", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(int64(42), "Fee Receipt", "Received payment of 500", models.TypeAlert).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(101, time.Now()))

	var gotToken, gotTitle, gotBody string
	push := &MockPushChannel{
		SendFunc: func(_ context.Context, token, title, body string, _ map[string]string) channels.Result {
			gotToken, gotTitle, gotBody = token, title, body
			return channels.Result{Channel: channels.ChannelPush, Status: channels.StatusSent}
		},
	}
	d := newTestDispatcher(t, db, push, unusedText(t, channels.ChannelSMS), unusedText(t, channels.ChannelWhatsApp), config.AttendanceConfig{})

	report, err := d.Dispatch(context.Background(), Request{
		Recipient: "ST-001",
		RoleHint:  "Student",
		Title:     "Fee Receipt",
		Body:      "Received payment of 500",
	})

	require.NoError(t, err)
	assert.True(t, report.Resolved)
	assert.True(t, report.Persisted)
	assert.Equal(t, recipient.OutcomeUnique, report.Outcome)
	assert.Equal(t, int64(42), report.AccountID)
	assert.Equal(t, int64(101), report.NotificationID)
	assert.Equal(t, "tok-abc", gotToken)
	assert.Equal(t, "Fee Receipt", gotTitle)
	assert.Equal(t, "Received payment of 500", gotBody)
	assert.True(t, report.Delivered())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An unresolvable reference reports false and must not insert a row.
func TestDispatcher_Dispatch_UnresolvedDoesNotInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM students p`).
		WithArgs("doesnotexist").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "fcm_token", "school_id"}))

	push := &MockPushChannel{
		SendFunc: func(_ context.Context, _, _, _ string, _ map[string]string) channels.Result {
			t.Error("push should not be invoked for an unresolved recipient")
			return channels.Result{}
		},
	}
	d := newTestDispatcher(t, db, push, unusedText(t, channels.ChannelSMS), unusedText(t, channels.ChannelWhatsApp), config.AttendanceConfig{})

	ok := d.Send(context.Background(), "doesnotexist", "Title", "Body", "Student")

	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A push failure must not gate the SMS attempt, and both results must be in
// the report.
func TestDispatcher_Dispatch_ChannelIndependence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(accountQuery)).
		WithArgs(int64(7)).
		WillReturnRows(accountRows(7, "STUDENT", "ravi@student.school.com", "tok-7", 1))
	expectInsert(mock, 7, 102)

	push := &MockPushChannel{
		SendFunc: func(_ context.Context, _, _, _ string, _ map[string]string) channels.Result {
			return channels.Result{Channel: channels.ChannelPush, Status: channels.StatusFailed, Detail: "invalid token"}
		},
	}
	smsCalled := false
	sms := &MockTextChannel{
		SendFunc: func(_ context.Context, phone, _ string) channels.Result {
			smsCalled = true
			assert.Equal(t, "9876543210", phone)
			return channels.Result{Channel: channels.ChannelSMS, Status: channels.StatusSent}
		},
	}
	d := newTestDispatcher(t, db, push, sms, unusedText(t, channels.ChannelWhatsApp), config.AttendanceConfig{ViaSMS: true})

	report, err := d.Dispatch(context.Background(), Request{
		Recipient: 7,
		RoleHint:  "Student",
		Title:     "Attendance Alert",
		Body:      "Ravi was marked Absent",
		Category:  models.CategoryAttendance,
		Phone:     "9876543210",
	})

	require.NoError(t, err)
	assert.True(t, smsCalled)
	require.Len(t, report.Channels, 2)
	assert.Equal(t, channels.StatusFailed, report.Channels[0].Status)
	assert.Equal(t, channels.StatusSent, report.Channels[1].Status)
	assert.True(t, report.Delivered())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two identical dispatches produce two rows and two send rounds. This is
// the documented behavior; dedup is a caller concern, and this test guards
// against anyone quietly "fixing" it here.
func TestDispatcher_Dispatch_DuplicateCallsDuplicateRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, notifID := range []int64{201, 202} {
		mock.ExpectQuery(regexp.QuoteMeta(accountQuery)).
			WithArgs(int64(7)).
			WillReturnRows(accountRows(7, "STUDENT", "ravi@student.school.com", "tok-7", 1))
		expectInsert(mock, 7, notifID)
	}

	pushCalls := 0
	push := &MockPushChannel{
		SendFunc: func(_ context.Context, _, _, _ string, _ map[string]string) channels.Result {
			pushCalls++
			return channels.Result{Channel: channels.ChannelPush, Status: channels.StatusSent}
		},
	}
	d := newTestDispatcher(t, db, push, unusedText(t, channels.ChannelSMS), unusedText(t, channels.ChannelWhatsApp), config.AttendanceConfig{})

	req := Request{Recipient: 7, RoleHint: "Student", Title: "Title", Body: "Body"}
	first, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	second, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(201), first.NotificationID)
	assert.Equal(t, int64(202), second.NotificationID)
	assert.Equal(t, 2, pushCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The row insert is the one failure class allowed to propagate; channels
// must not be attempted without a persisted record.
func TestDispatcher_Dispatch_PersistFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(accountQuery)).
		WithArgs(int64(7)).
		WillReturnRows(accountRows(7, "STUDENT", "ravi@student.school.com", "tok-7", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WillReturnError(errors.New("connection refused"))

	push := &MockPushChannel{
		SendFunc: func(_ context.Context, _, _, _ string, _ map[string]string) channels.Result {
			t.Error("push should not be invoked when persistence failed")
			return channels.Result{}
		},
	}
	d := newTestDispatcher(t, db, push, unusedText(t, channels.ChannelSMS), unusedText(t, channels.ChannelWhatsApp), config.AttendanceConfig{})

	report, err := d.Dispatch(context.Background(), Request{Recipient: 7, RoleHint: "Student", Title: "T", Body: "B"})

	require.Error(t, err)
	assert.True(t, report.Resolved)
	assert.False(t, report.Persisted)
	assert.Empty(t, report.Channels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Attendance routing: exactly one of SMS or WhatsApp per the deployment
// switch; both off falls back to the legacy plain-SMS composer.
func TestDispatcher_Dispatch_AttendanceChannelSwitch(t *testing.T) {
	tests := []struct {
		name        string
		att         config.AttendanceConfig
		wantChannel string
		wantMessage string
	}{
		{
			name:        "SMS switch wins",
			att:         config.AttendanceConfig{ViaSMS: true, ViaWhatsApp: true},
			wantChannel: channels.ChannelSMS,
			wantMessage: "Dear Parent, Ravi was marked Absent on 2026-08-31.",
		},
		{
			name:        "WhatsApp when SMS off",
			att:         config.AttendanceConfig{ViaWhatsApp: true},
			wantChannel: channels.ChannelWhatsApp,
			wantMessage: "Dear Parent, Ravi was marked Absent on 2026-08-31.",
		},
		{
			name:        "both off falls back to plain SMS",
			att:         config.AttendanceConfig{},
			wantChannel: channels.ChannelSMS,
			wantMessage: "Attendance Alert: Ravi marked absent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(accountQuery)).
				WithArgs(int64(7)).
				WillReturnRows(accountRows(7, "STUDENT", "ravi@student.school.com", "", 1))
			expectInsert(mock, 7, 301)

			var gotChannel, gotMessage string
			capture := func(channel string) *MockTextChannel {
				return &MockTextChannel{
					SendFunc: func(_ context.Context, _, message string) channels.Result {
						gotChannel, gotMessage = channel, message
						return channels.Result{Channel: channel, Status: channels.StatusSent}
					},
				}
			}
			d := newTestDispatcher(t, db, sentPush(), capture(channels.ChannelSMS), capture(channels.ChannelWhatsApp), tt.att)

			report, err := d.Dispatch(context.Background(), Request{
				Recipient: 7,
				RoleHint:  "Student",
				Title:     "Attendance Alert",
				Body:      "Ravi marked absent",
				Category:  models.CategoryAttendance,
				Phone:     "9876543210",
				Data: map[string]interface{}{
					"studentName": "Ravi",
					"status":      "Absent",
					"date":        "2026-08-31",
				},
			})

			require.NoError(t, err)
			assert.Equal(t, tt.wantChannel, gotChannel)
			assert.Equal(t, tt.wantMessage, gotMessage)
			// Empty device token: only the phone channel fires.
			require.Len(t, report.Channels, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
