// internal/dispatch/store.go
package dispatch

import (
	"context"
	"database/sql"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/models"
)

// Store persists notification rows. One row per dispatch attempt that
// resolved; duplicate dispatches produce duplicate rows by design.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes one notification row and returns it with the generated id
// and timestamp.
func (s *Store) Insert(ctx context.Context, accountID int64, title, message, notifType string) (models.Notification, error) {
	n := models.Notification{
		AccountID: accountID,
		Title:     title,
		Message:   message,
		Type:      notifType,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (account_id, title, message, type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		accountID, title, message, notifType,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return models.Notification{}, apperrors.NewPersistFailedError(err)
	}
	return n, nil
}

// MarkRead flips the read flag on one notification, scoped to its owner so
// one account cannot mark another's rows.
func (s *Store) MarkRead(ctx context.Context, id, accountID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND account_id = $2`,
		id, accountID,
	)
	if err != nil {
		return apperrors.NewQueryFailedError(err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListForAccount returns an account's notifications, newest first.
func (s *Store) ListForAccount(ctx context.Context, accountID int64, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, title, message, type, is_read, created_at
		 FROM notifications
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, apperrors.NewQueryFailedError(err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, apperrors.NewQueryFailedError(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryFailedError(err)
	}
	return out, nil
}
