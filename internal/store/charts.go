// ABOUTME: Chart record persistence with visit-keyed upsert semantics
// ABOUTME: At most one record per (user, file number, visit date); saves are idempotent per visit

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const chartColumns = `id, user_id, file_no, visit_date, chart_type, chart_data, created_at, updated_at`

// SaveChart inserts or updates a chart record keyed on the exact
// (UserID, FileNo, VisitDate) triple. When a record with that triple exists,
// its chart_data, chart_type and updated_at are overwritten in place and
// id/created_at are preserved, so autosave and re-submit never duplicate a
// visit. A new date for the same file number inserts a new historical entry.
func (s *SQLiteStore) SaveChart(ctx context.Context, rec *ChartRecord) (*ChartRecord, error) {
	if err := validateChart(rec); err != nil {
		return nil, err
	}

	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	var existingID int64
	var createdAtStr string
	err = tx.QueryRowContext(ctx, `
		SELECT id, created_at FROM patient_charts
		WHERE user_id = ? AND file_no = ? AND visit_date = ?
		LIMIT 1
	`, rec.UserID, rec.FileNo, rec.VisitDate).Scan(&existingID, &createdAtStr)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		saved, err := insertChart(ctx, tx, rec, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing chart insert: %w", err)
		}
		s.logger.Debug("inserted chart", "id", saved.ID, "user_id", saved.UserID, "file_no", saved.FileNo, "date", saved.VisitDate)
		return saved, nil

	case err != nil:
		return nil, fmt.Errorf("querying existing chart: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE patient_charts
		SET chart_type = ?, chart_data = ?, updated_at = ?
		WHERE id = ?
	`, rec.ChartType, string(rec.ChartData), now.Format(time.RFC3339), existingID)
	if err != nil {
		return nil, fmt.Errorf("updating chart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chart update: %w", err)
	}

	saved := *rec
	saved.ID = existingID
	saved.CreatedAt = createdAt
	saved.UpdatedAt = now
	s.logger.Debug("updated chart", "id", existingID, "user_id", rec.UserID, "file_no", rec.FileNo, "date", rec.VisitDate)
	return &saved, nil
}

// SaveChartAsNew always inserts, even when a record with the same
// (UserID, FileNo, VisitDate) triple already exists. This bypasses the
// visit-upsert invariant the rest of the system relies on; prefer SaveChart.
func (s *SQLiteStore) SaveChartAsNew(ctx context.Context, rec *ChartRecord) (*ChartRecord, error) {
	if err := validateChart(rec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	saved, err := insertChart(ctx, s.conn(), rec, now)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("inserted chart (as new)", "id", saved.ID, "user_id", saved.UserID, "file_no", saved.FileNo, "date", saved.VisitDate)
	return saved, nil
}

// execer covers *sql.DB and *sql.Tx for the insert helper.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertChart(ctx context.Context, db execer, rec *ChartRecord, now time.Time) (*ChartRecord, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO patient_charts (user_id, file_no, visit_date, chart_type, chart_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.UserID,
		rec.FileNo,
		rec.VisitDate,
		rec.ChartType,
		string(rec.ChartData),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting chart: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting chart id: %w", err)
	}

	saved := *rec
	saved.ID = id
	saved.CreatedAt = now
	saved.UpdatedAt = now
	return &saved, nil
}

// validateChart checks the fields the store itself depends on. The payload
// stays opaque; only identity fields and the chart type enum are enforced.
func validateChart(rec *ChartRecord) error {
	if rec.UserID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}
	if rec.FileNo == "" {
		return fmt.Errorf("%w: file number required", ErrValidation)
	}
	if rec.VisitDate == "" {
		return fmt.Errorf("%w: visit date required", ErrValidation)
	}
	if rec.ChartType == "" {
		rec.ChartType = ChartTypeNew
	}
	if rec.ChartType != ChartTypeNew && rec.ChartType != ChartTypeFollowUp {
		return fmt.Errorf("%w: invalid chart type %q", ErrValidation, rec.ChartType)
	}
	if len(rec.ChartData) == 0 {
		rec.ChartData = json.RawMessage("{}")
	}
	return nil
}

// GetChart retrieves a chart by id, scoped to the owning account.
// Returns ErrNotFound if no matching record exists.
func (s *SQLiteStore) GetChart(ctx context.Context, userID string, id int64) (*ChartRecord, error) {
	query := `SELECT ` + chartColumns + ` FROM patient_charts WHERE id = ? AND user_id = ?`

	rec, err := scanChart(s.conn().QueryRowContext(ctx, query, id, userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListChartsByUser returns all chart records for an account, most recently
// updated first.
func (s *SQLiteStore) ListChartsByUser(ctx context.Context, userID string) ([]*ChartRecord, error) {
	query := `SELECT ` + chartColumns + ` FROM patient_charts WHERE user_id = ? ORDER BY updated_at DESC, id DESC`
	return s.queryCharts(ctx, query, userID)
}

// ListChartsByFileNo returns the visit history for one patient file,
// scoped to the owning account and ordered by visit date ascending.
// Used to reconstruct prior visits for follow-up pre-fill.
func (s *SQLiteStore) ListChartsByFileNo(ctx context.Context, userID, fileNo string) ([]*ChartRecord, error) {
	query := `SELECT ` + chartColumns + ` FROM patient_charts
		WHERE user_id = ? AND file_no = ? ORDER BY visit_date ASC, id ASC`
	return s.queryCharts(ctx, query, userID, fileNo)
}

// DeleteChartByID removes one chart by id, scoped to the owning account.
// Returns ErrNotFound if no matching record exists.
func (s *SQLiteStore) DeleteChartByID(ctx context.Context, userID string, id int64) error {
	result, err := s.conn().ExecContext(ctx,
		"DELETE FROM patient_charts WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting chart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted chart", "id", id, "user_id", userID)
	return nil
}

// DeleteChart removes a chart by file number, optionally narrowed by visit
// date. With an empty visitDate the single oldest-dated match is removed;
// callers with multiple visits on file should pass the date. Returns
// ErrNotFound if nothing matches.
func (s *SQLiteStore) DeleteChart(ctx context.Context, userID, fileNo, visitDate string) error {
	var result sql.Result
	var err error

	if visitDate != "" {
		result, err = s.conn().ExecContext(ctx, `
			DELETE FROM patient_charts
			WHERE user_id = ? AND file_no = ? AND visit_date = ?
		`, userID, fileNo, visitDate)
	} else {
		result, err = s.conn().ExecContext(ctx, `
			DELETE FROM patient_charts
			WHERE id IN (
				SELECT id FROM patient_charts
				WHERE user_id = ? AND file_no = ?
				ORDER BY visit_date ASC, id ASC
				LIMIT 1
			)
		`, userID, fileNo)
	}
	if err != nil {
		return fmt.Errorf("deleting chart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted chart", "user_id", userID, "file_no", fileNo, "date", visitDate)
	return nil
}

func (s *SQLiteStore) queryCharts(ctx context.Context, query string, args ...any) ([]*ChartRecord, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying charts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ChartRecord
	for rows.Next() {
		rec, err := scanChart(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating charts: %w", err)
	}
	return records, nil
}

func scanChart(scan func(...any) error) (*ChartRecord, error) {
	var rec ChartRecord
	var chartData string
	var createdAtStr, updatedAtStr string

	err := scan(
		&rec.ID,
		&rec.UserID,
		&rec.FileNo,
		&rec.VisitDate,
		&rec.ChartType,
		&chartData,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chart: %w", err)
	}

	rec.ChartData = json.RawMessage(chartData)

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rec, nil
}
