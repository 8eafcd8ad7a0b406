// ABOUTME: Full-user export to a portable document and idempotent restore
// ABOUTME: Restore replays charts through the visit upsert so it never duplicates

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExportUserData bundles all chart records for a user, the clinic profile
// if one exists, a timestamp and the schema version into a self-describing
// portable document.
func (s *SQLiteStore) ExportUserData(ctx context.Context, userID string) (*BackupDocument, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	charts, err := s.ListChartsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("exporting charts: %w", err)
	}
	if charts == nil {
		charts = []*ChartRecord{}
	}

	clinic, err := s.GetClinicProfile(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("exporting clinic profile: %w", err)
	}

	version, err := s.SchemaVersion()
	if err != nil {
		return nil, err
	}

	doc := &BackupDocument{
		UserID:        userID,
		ExportedAt:    time.Now().UTC(),
		SchemaVersion: version,
		Charts:        charts,
		Clinic:        clinic,
	}

	s.logger.Info("exported user data", "user_id", userID, "charts", len(charts))
	return doc, nil
}

// RestoreUserData reconstructs a user's data from a portable document.
// The document must carry a user id and a charts array (ErrValidation
// otherwise). Charts are replayed through SaveChart's visit upsert, so
// restoring the same document twice is a no-op rather than a duplication.
// Restore is best-effort per record: individual failures are logged and
// skipped, and the count of restored charts is returned.
func (s *SQLiteStore) RestoreUserData(ctx context.Context, doc *BackupDocument) (int, error) {
	if doc == nil {
		return 0, fmt.Errorf("%w: missing document", ErrValidation)
	}
	if doc.UserID == "" {
		return 0, fmt.Errorf("%w: document missing user id", ErrValidation)
	}
	if doc.Charts == nil {
		return 0, fmt.Errorf("%w: document missing charts", ErrValidation)
	}

	restored := 0
	for _, rec := range doc.Charts {
		if rec == nil {
			continue
		}
		replay := &ChartRecord{
			UserID:    doc.UserID, // documents restore into their owning account only
			FileNo:    rec.FileNo,
			VisitDate: rec.VisitDate,
			ChartType: rec.ChartType,
			ChartData: rec.ChartData,
		}
		if _, err := s.SaveChart(ctx, replay); err != nil {
			s.logger.Warn("skipping chart during restore",
				"file_no", rec.FileNo, "date", rec.VisitDate, "error", err)
			continue
		}
		restored++
	}

	if doc.Clinic != nil {
		update := ClinicUpdate{
			ClinicName:         &doc.Clinic.ClinicName,
			ClinicLogo:         &doc.Clinic.ClinicLogo,
			TherapistName:      &doc.Clinic.TherapistName,
			TherapistLicenseNo: &doc.Clinic.TherapistLicenseNo,
		}
		if _, err := s.SaveClinicProfile(ctx, doc.UserID, update); err != nil {
			s.logger.Warn("skipping clinic profile during restore", "error", err)
		}
	}

	s.logger.Info("restored user data", "user_id", doc.UserID, "restored", restored, "total", len(doc.Charts))
	return restored, nil
}
