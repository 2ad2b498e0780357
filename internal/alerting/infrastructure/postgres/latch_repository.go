package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	alerting "noise-monitor/internal/alerting/domain"
)

const defaultAlertStatusTable = "alert_status"

// LatchRepository stores alert latches in the alert_status table.
type LatchRepository struct {
	db    *sql.DB
	table string
}

// LatchOption customizes the repository.
type LatchOption func(*LatchRepository)

// WithLatchTable overrides the table name.
func WithLatchTable(table string) LatchOption {
	return func(r *LatchRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewLatchRepository constructs a repository.
func NewLatchRepository(db *sql.DB, opts ...LatchOption) *LatchRepository {
	repo := &LatchRepository{db: db, table: defaultAlertStatusTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get returns the latch value; a missing row reads as false.
func (r *LatchRepository) Get(ctx context.Context, deviceID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("latch repo: nil db")
	}
	if deviceID == "" {
		return false, alerting.ErrMissingDevice
	}
	var alerted sql.NullBool
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT alerted FROM %s WHERE device_id = $1`, r.table), deviceID).Scan(&alerted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return alerted.Valid && alerted.Bool, nil
}

// Set writes the latch value unconditionally.
func (r *LatchRepository) Set(ctx context.Context, deviceID string, alerted bool) error {
	if r == nil || r.db == nil {
		return errors.New("latch repo: nil db")
	}
	if deviceID == "" {
		return alerting.ErrMissingDevice
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (device_id, alerted, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (device_id)
DO UPDATE SET alerted = EXCLUDED.alerted, updated_at = EXCLUDED.updated_at`, r.table), deviceID, alerted)
	return err
}

// CompareAndSet writes next only when the stored value equals old. A missing
// row compares as false.
func (r *LatchRepository) CompareAndSet(ctx context.Context, deviceID string, old, next bool) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("latch repo: nil db")
	}
	if deviceID == "" {
		return false, alerting.ErrMissingDevice
	}
	var query string
	var args []any
	if old {
		query = fmt.Sprintf(`
UPDATE %s SET alerted = $2, updated_at = NOW()
WHERE device_id = $1 AND alerted = TRUE`, r.table)
		args = []any{deviceID, next}
	} else {
		query = fmt.Sprintf(`
INSERT INTO %[1]s (device_id, alerted, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (device_id)
DO UPDATE SET alerted = EXCLUDED.alerted, updated_at = EXCLUDED.updated_at
WHERE %[1]s.alerted IS NOT TRUE`, r.table)
		args = []any{deviceID, next}
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// List returns all latches ordered by device id.
func (r *LatchRepository) List(ctx context.Context) ([]alerting.LatchState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("latch repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT device_id, alerted, updated_at FROM %s ORDER BY device_id`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerting.LatchState
	for rows.Next() {
		var state alerting.LatchState
		var alerted sql.NullBool
		if err := rows.Scan(&state.DeviceID, &alerted, &state.UpdatedAt); err != nil {
			return nil, err
		}
		state.Alerted = alerted.Valid && alerted.Bool
		state.UpdatedAt = state.UpdatedAt.UTC()
		out = append(out, state)
	}
	return out, rows.Err()
}
