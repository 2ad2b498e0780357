package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	readings "noise-monitor/internal/readings/domain"
)

const defaultMeasurementsTable = "measurements"

// ReadingRepository is a Postgres implementation of the reading store.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewReadingRepository constructs a repository with default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultMeasurementsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Put upserts a measurement and returns the row it replaced.
func (r *ReadingRepository) Put(ctx context.Context, m readings.Measurement) (*readings.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT device_id, ts_key, status_label, noise_level, vibration_level, formatted_time
FROM %s
WHERE device_id = $1 AND ts_key = $2
FOR UPDATE`, r.table), m.DeviceID, m.Key)
	before, err := scanMeasurement(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	device_id,
	ts_key,
	status_label,
	noise_level,
	vibration_level,
	formatted_time
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (device_id, ts_key)
DO UPDATE SET
	status_label = EXCLUDED.status_label,
	noise_level = EXCLUDED.noise_level,
	vibration_level = EXCLUDED.vibration_level,
	formatted_time = EXCLUDED.formatted_time,
	updated_at = NOW()`, r.table),
		m.DeviceID,
		m.Key,
		m.StatusLabel,
		m.NoiseLevel,
		m.VibrationLevel,
		m.FormattedTime,
	); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return before, nil
}

// Delete removes a measurement and returns it.
func (r *ReadingRepository) Delete(ctx context.Context, deviceID string, key int64) (*readings.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
DELETE FROM %s
WHERE device_id = $1 AND ts_key = $2
RETURNING device_id, ts_key, status_label, noise_level, vibration_level, formatted_time`, r.table), deviceID, key)
	removed, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListSince returns measurements with ts_key >= bound, oldest first.
func (r *ReadingRepository) ListSince(ctx context.Context, deviceID string, bound int64) ([]readings.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT device_id, ts_key, status_label, noise_level, vibration_level, formatted_time
FROM %s
WHERE device_id = $1
	AND ts_key >= $2
ORDER BY ts_key ASC`, r.table), deviceID, bound)
	if err != nil {
		return nil, err
	}
	return collectMeasurements(rows)
}

// ListLatest returns up to limit measurements, newest first.
func (r *ReadingRepository) ListLatest(ctx context.Context, deviceID string, limit int) ([]readings.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT device_id, ts_key, status_label, noise_level, vibration_level, formatted_time
FROM %s
WHERE device_id = $1
ORDER BY ts_key DESC
LIMIT $2`, r.table), deviceID, limit)
	if err != nil {
		return nil, err
	}
	return collectMeasurements(rows)
}

// ListKeysBefore returns keys older than bound across all devices.
func (r *ReadingRepository) ListKeysBefore(ctx context.Context, bound int64, limit int) ([]readings.KeyRef, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT device_id, ts_key
FROM %s
WHERE ts_key < $1
ORDER BY ts_key ASC, device_id ASC
LIMIT $2`, r.table), bound, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []readings.KeyRef
	for rows.Next() {
		var ref readings.KeyRef
		if err := rows.Scan(&ref.DeviceID, &ref.Key); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Devices lists distinct device ids.
func (r *ReadingRepository) Devices(ctx context.Context) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT device_id FROM %s ORDER BY device_id`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (*readings.Measurement, error) {
	var m readings.Measurement
	var status, noise, vibration, formatted sql.NullString
	if err := row.Scan(&m.DeviceID, &m.Key, &status, &noise, &vibration, &formatted); err != nil {
		return nil, err
	}
	m.StatusLabel = status.String
	m.NoiseLevel = noise.String
	m.VibrationLevel = vibration.String
	m.FormattedTime = formatted.String
	return &m, nil
}

func collectMeasurements(rows *sql.Rows) ([]readings.Measurement, error) {
	defer rows.Close()
	result := make([]readings.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
