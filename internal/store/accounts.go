// ABOUTME: Account persistence methods on SQLiteStore
// ABOUTME: Covers creation, case-insensitive lookup, approval, profile and password updates

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const accountColumns = `id, username, password_hash, clinic_name, therapist_name,
		therapist_license_no, is_admin, is_approved, approved_at, approved_by, created_at`

// CreateAccount inserts a new account.
// Returns ErrUsernameTaken if the username already exists, compared
// case-insensitively via the unique index on lower(username).
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, username, password_hash, clinic_name, therapist_name,
			therapist_license_no, is_admin, is_approved, approved_at, approved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var approvedAt any
	if account.ApprovedAt != nil {
		approvedAt = account.ApprovedAt.UTC().Format(time.RFC3339)
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn().ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		nullString(account.ClinicName),
		nullString(account.TherapistName),
		nullString(account.TherapistLicenseNo),
		account.IsAdmin,
		account.IsApproved,
		approvedAt,
		nullString(account.ApprovedBy),
		account.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Info("created account", "id", account.ID, "username", account.Username)
	return nil
}

// GetAccount retrieves an account by ID.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return s.scanAccountRow(s.conn().QueryRowContext(ctx, query, id))
}

// GetAccountByUsername retrieves an account by username, compared
// case-insensitively. Returns ErrNotFound if no account matches.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(username) = ?`
	return s.scanAccountRow(s.conn().QueryRowContext(ctx, query, strings.ToLower(username)))
}

// UpdateAccountProfile merges the provided profile fields into the account.
// Nil fields are untouched; credentials are never modified here.
// Returns the updated account, or ErrNotFound.
func (s *SQLiteStore) UpdateAccountProfile(ctx context.Context, id string, update ProfileUpdate) (*Account, error) {
	sets := []string{}
	args := []any{}

	if update.ClinicName != nil {
		sets = append(sets, "clinic_name = ?")
		args = append(args, *update.ClinicName)
	}
	if update.TherapistName != nil {
		sets = append(sets, "therapist_name = ?")
		args = append(args, *update.TherapistName)
	}
	if update.TherapistLicenseNo != nil {
		sets = append(sets, "therapist_license_no = ?")
		args = append(args, *update.TherapistLicenseNo)
	}

	if len(sets) > 0 {
		query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		args = append(args, id)

		result, err := s.conn().ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("updating account profile: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("getting rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil, ErrNotFound
		}

		s.logger.Debug("updated account profile", "id", id)
	}

	return s.GetAccount(ctx, id)
}

// UpdateAccountPassword overwrites the password hash and verifies the
// committed value by reading it back. A verify mismatch returns
// ErrPasswordVerify so callers can distinguish it from a write failure.
func (s *SQLiteStore) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.conn().ExecContext(ctx,
		"UPDATE accounts SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating account password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	// Read-after-write verification of the committed hash
	var stored string
	err = s.conn().QueryRowContext(ctx,
		"SELECT password_hash FROM accounts WHERE id = ?", id).Scan(&stored)
	if err != nil {
		return fmt.Errorf("verifying password write: %w", err)
	}
	if stored != passwordHash {
		return ErrPasswordVerify
	}

	s.logger.Info("updated account password", "id", id)
	return nil
}

// ApproveAccount flips the approval gate on a pending account. The update is
// guarded so approved_at/approved_by are set exactly once; approving an
// already-approved account is a no-op. Returns ErrNotFound if the account
// doesn't exist.
func (s *SQLiteStore) ApproveAccount(ctx context.Context, id, approvedBy string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.conn().ExecContext(ctx, `
		UPDATE accounts
		SET is_approved = 1, approved_at = ?, approved_by = ?
		WHERE id = ? AND is_approved = 0
	`, now, approvedBy, id)
	if err != nil {
		return fmt.Errorf("approving account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Info("approved account", "id", id, "approved_by", approvedBy)
		return nil
	}

	// No rows changed: either the account is gone or it was already approved
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account.IsApproved {
		return nil
	}
	return ErrNotFound
}

// DeleteAccount removes an account. Used both for rejection of a pending
// account and for explicit admin deletes. Returns ErrNotFound if absent.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.conn().ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted account", "id", id)
	return nil
}

// ListAccounts returns all accounts, oldest first.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`
	return s.queryAccounts(ctx, query)
}

// ListPendingAccounts returns accounts awaiting approval, oldest first.
func (s *SQLiteStore) ListPendingAccounts(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_approved = 0 ORDER BY created_at ASC`
	return s.queryAccounts(ctx, query)
}

// CountAccounts returns the number of registered accounts.
func (s *SQLiteStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

func (s *SQLiteStore) scanAccountRow(row *sql.Row) (*Account, error) {
	account, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// scanAccount reads one account from a row or rows scan function.
func scanAccount(scan func(...any) error) (*Account, error) {
	var account Account
	var clinicName, therapistName, licenseNo, approvedAt, approvedBy sql.NullString
	var createdAtStr string

	err := scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&clinicName,
		&therapistName,
		&licenseNo,
		&account.IsAdmin,
		&account.IsApproved,
		&approvedAt,
		&approvedBy,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	account.ClinicName = clinicName.String
	account.TherapistName = therapistName.String
	account.TherapistLicenseNo = licenseNo.String
	account.ApprovedBy = approvedBy.String

	account.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if approvedAt.Valid {
		t, err := time.Parse(time.RFC3339, approvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing approved_at: %w", err)
		}
		account.ApprovedAt = &t
	}

	return &account, nil
}
