package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

type DeviceRepo struct {
	db *sql.DB
}

func NewDeviceRepository(db *sql.DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

func (r *DeviceRepo) GetDeviceByID(ctx context.Context, id string) (*domain.Device, error) {
	if uuid.Validate(id) != nil {
		return nil, domain.ErrInvalidDeviceID
	}
	d := &domain.Device{ID: id}
	query := `SELECT user_id, device_name, device_type, is_active, last_seen, created_at
        FROM devices WHERE id = $1`
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&d.UserID, &d.Name, &d.Type, &d.IsActive, &d.LastSeen, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *DeviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return domain.ErrInvalidDeviceID
	}
	query := `UPDATE devices SET last_seen = NOW() WHERE id = $1`
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}
