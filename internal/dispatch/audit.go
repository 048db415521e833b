// internal/dispatch/audit.go
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"school-notify/internal/channels"
	"school-notify/internal/common/logger"
)

const (
	auditKey    = "notify:audit"
	auditMaxLen = 1000
	auditTTL    = 7 * 24 * time.Hour
)

// AuditEntry is one delivery-audit record: which account was targeted and
// what every channel reported. Kept in a capped Redis list for operational
// inspection; the durable record is the notifications table.
type AuditEntry struct {
	ID         string            `json:"id"`
	AccountID  int64             `json:"accountId"`
	Title      string            `json:"title"`
	Outcome    string            `json:"outcome"`
	Channels   []channels.Result `json:"channels"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Audit writes delivery outcomes to Redis best-effort. A nil Audit or an
// unreachable Redis only costs the audit trail, never the dispatch.
type Audit struct {
	client *redis.Client
	logger logger.Logger
}

func NewAudit(client *redis.Client, log logger.Logger) *Audit {
	return &Audit{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

// Record appends one entry to the audit list. Failures are logged and
// swallowed.
func (a *Audit) Record(ctx context.Context, accountID int64, title string, outcome string, results []channels.Result) {
	if a == nil || a.client == nil {
		return
	}

	entry := AuditEntry{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Title:      title,
		Outcome:    outcome,
		Channels:   results,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		a.logger.WithError(err).Warn("audit entry marshal failed", nil)
		return
	}

	pipe := a.client.Pipeline()
	pipe.LPush(ctx, auditKey, data)
	pipe.LTrim(ctx, auditKey, 0, auditMaxLen-1)
	pipe.Expire(ctx, auditKey, auditTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.WithError(err).Warn("audit write failed", nil)
	}
}

// Recent returns the newest n audit entries.
func (a *Audit) Recent(ctx context.Context, n int64) ([]AuditEntry, error) {
	if a == nil || a.client == nil {
		return nil, nil
	}

	raw, err := a.client.LRange(ctx, auditKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]AuditEntry, 0, len(raw))
	for _, item := range raw {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			a.logger.WithError(err).Warn("audit entry decode failed", nil)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
