// internal/dispatch/store_test.go
package dispatch

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/models"
)

func TestStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(int64(42), "Fee Receipt", "Received payment of 500", models.TypeAlert).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(101, created))

	store := NewStore(db)
	n, err := store.Insert(context.Background(), 42, "Fee Receipt", "Received payment of 500", models.TypeAlert)

	require.NoError(t, err)
	assert.Equal(t, int64(101), n.ID)
	assert.Equal(t, int64(42), n.AccountID)
	assert.Equal(t, created, n.CreatedAt)
	assert.False(t, n.IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WillReturnError(errors.New("connection refused"))

	store := NewStore(db)
	_, err = store.Insert(context.Background(), 42, "T", "B", models.TypeAlert)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationPersistFailed, apperrors.CodeOf(err))
}

func TestStore_MarkRead_ScopedToOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND account_id = $2`)).
		WithArgs(int64(101), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	err = store.MarkRead(context.Background(), 101, 99)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListForAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "account_id", "title", "message", "type", "is_read", "created_at"}).
		AddRow(2, 42, "Second", "b", models.TypeInfo, false, time.Now()).
		AddRow(1, 42, "First", "a", models.TypeAlert, true, time.Now())
	mock.ExpectQuery(`FROM notifications`).
		WithArgs(int64(42), 10).
		WillReturnRows(rows)

	store := NewStore(db)
	list, err := store.ListForAccount(context.Background(), 42, 10)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)
	assert.True(t, list[1].IsRead)
}
