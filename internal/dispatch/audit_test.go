// internal/dispatch/audit_test.go
package dispatch

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-notify/internal/channels"
	"school-notify/internal/common/logger"
)

func newTestAudit(t *testing.T) (*Audit, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAudit(client, logger.NewTestLogger(t)), mr
}

func TestAudit_RecordAndRecent(t *testing.T) {
	audit, _ := newTestAudit(t)
	ctx := context.Background()

	audit.Record(ctx, 42, "Fee Receipt", "unique", []channels.Result{
		{Channel: channels.ChannelPush, Status: channels.StatusSent, ProviderID: "push-1"},
	})
	audit.Record(ctx, 7, "Attendance Alert", "unique", []channels.Result{
		{Channel: channels.ChannelSMS, Status: channels.StatusFailed, Detail: "throttled"},
	})

	entries, err := audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, int64(7), entries[0].AccountID)
	assert.Equal(t, int64(42), entries[1].AccountID)
	assert.NotEmpty(t, entries[0].ID)
	require.Len(t, entries[1].Channels, 1)
	assert.Equal(t, channels.StatusSent, entries[1].Channels[0].Status)
}

func TestAudit_NilClientIsNoOp(t *testing.T) {
	var audit *Audit

	// Must not panic; the audit trail is strictly best-effort.
	audit.Record(context.Background(), 1, "T", "unique", nil)

	entries, err := audit.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestAudit_RecordSurvivesRedisDown(t *testing.T) {
	audit, mr := newTestAudit(t)
	mr.Close()

	// Logged and swallowed, never an error to the dispatcher.
	audit.Record(context.Background(), 1, "T", "unique", nil)
}
