// ABOUTME: Clinic profile persistence, one settings record per account
// ABOUTME: Saves merge provided fields and upsert on the unique user_id key

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetClinicProfile retrieves the clinic profile for an account.
// Returns ErrNotFound if the user has no profile yet.
func (s *SQLiteStore) GetClinicProfile(ctx context.Context, userID string) (*ClinicProfile, error) {
	query := `
		SELECT user_id, clinic_name, clinic_logo, therapist_name, therapist_license_no, updated_at
		FROM clinic_profiles
		WHERE user_id = ?
	`

	var profile ClinicProfile
	var clinicName, clinicLogo, therapistName, licenseNo sql.NullString
	var updatedAtStr string

	err := s.conn().QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&clinicName,
		&clinicLogo,
		&therapistName,
		&licenseNo,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying clinic profile: %w", err)
	}

	profile.ClinicName = clinicName.String
	profile.ClinicLogo = clinicLogo.String
	profile.TherapistName = therapistName.String
	profile.TherapistLicenseNo = licenseNo.String

	profile.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &profile, nil
}

// SaveClinicProfile upserts the single clinic profile for an account.
// Provided fields are merged over the existing record; nil fields keep
// their current value. updated_at is bumped on every save.
func (s *SQLiteStore) SaveClinicProfile(ctx context.Context, userID string, update ClinicUpdate) (*ClinicProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	profile := ClinicProfile{UserID: userID}

	var clinicName, clinicLogo, therapistName, licenseNo sql.NullString
	var updatedAtStr string
	err = tx.QueryRowContext(ctx, `
		SELECT clinic_name, clinic_logo, therapist_name, therapist_license_no, updated_at
		FROM clinic_profiles WHERE user_id = ?
	`, userID).Scan(&clinicName, &clinicLogo, &therapistName, &licenseNo, &updatedAtStr)

	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("querying clinic profile: %w", err)
	} else {
		profile.ClinicName = clinicName.String
		profile.ClinicLogo = clinicLogo.String
		profile.TherapistName = therapistName.String
		profile.TherapistLicenseNo = licenseNo.String
	}

	if update.ClinicName != nil {
		profile.ClinicName = *update.ClinicName
	}
	if update.ClinicLogo != nil {
		profile.ClinicLogo = *update.ClinicLogo
	}
	if update.TherapistName != nil {
		profile.TherapistName = *update.TherapistName
	}
	if update.TherapistLicenseNo != nil {
		profile.TherapistLicenseNo = *update.TherapistLicenseNo
	}

	profile.UpdatedAt = time.Now().UTC()
	updatedAt := profile.UpdatedAt.Format(time.RFC3339)

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE clinic_profiles
			SET clinic_name = ?, clinic_logo = ?, therapist_name = ?, therapist_license_no = ?, updated_at = ?
			WHERE user_id = ?
		`, nullString(profile.ClinicName), nullString(profile.ClinicLogo),
			nullString(profile.TherapistName), nullString(profile.TherapistLicenseNo),
			updatedAt, userID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO clinic_profiles (user_id, clinic_name, clinic_logo, therapist_name, therapist_license_no, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, userID, nullString(profile.ClinicName), nullString(profile.ClinicLogo),
			nullString(profile.TherapistName), nullString(profile.TherapistLicenseNo),
			updatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("saving clinic profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing clinic profile: %w", err)
	}

	s.logger.Debug("saved clinic profile", "user_id", userID)
	return &profile, nil
}
