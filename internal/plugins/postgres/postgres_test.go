package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

const deviceID = "6f1c2a36-8c1e-4c57-9a55-0f1d3c1f8e01"

func TestGetDeviceByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDeviceRepository(db)
	seen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE id = $1`)).
			WithArgs(deviceID).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "device_name", "device_type", "is_active", "last_seen", "created_at"}).
				AddRow("user-1", "laptop", "desktop", true, seen, seen))

		d, err := repo.GetDeviceByID(context.Background(), deviceID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", d.UserID)
		assert.Equal(t, "laptop", d.Name)
		assert.True(t, d.IsActive)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE id = $1`)).
			WithArgs(deviceID).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		_, err := repo.GetDeviceByID(context.Background(), deviceID)
		assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
	})

	t.Run("invalid id never hits the database", func(t *testing.T) {
		_, err := repo.GetDeviceByID(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidDeviceID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchLastSeen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDeviceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET last_seen = NOW() WHERE id = $1`)).
		WithArgs(deviceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.TouchLastSeen(context.Background(), deviceID))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices`)).
		WithArgs(deviceID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.TouchLastSeen(context.Background(), deviceID), domain.ErrDeviceNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClipboardSaveInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewClipboardRepository(db)
	tm := NewTxManager(db)
	item := &domain.ClipboardItem{
		ID:               "item-1",
		UserID:           "user-1",
		DeviceID:         deviceID,
		EncryptedContent: "c",
		IV:               "iv",
		ContentHash:      "h1",
		ContentType:      "text",
		ContentSize:      1,
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clipboard_items`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM clipboard_items`)).
		WithArgs("user-1", 20).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err = tm.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.Save(ctx, item, 20)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClipboardSaveRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewClipboardRepository(db)
	tm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clipboard_items`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = tm.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.Save(ctx, &domain.ClipboardItem{ID: "item-1", UserID: "user-1"}, 20)
	})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClipboardSaveRequiresUser(t *testing.T) {
	repo := NewClipboardRepository(nil)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.ClipboardItem{}, 20), domain.ErrInvalidUserID)
}
