// ABOUTME: Store interfaces and data types for dxchart persistence
// ABOUTME: Defines Account, ChartRecord, ClinicProfile and the store interfaces

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when registering a username that already
// exists, compared case-insensitively
var ErrUsernameTaken = errors.New("username already taken")

// ErrValidation is returned when an operation is given malformed input,
// such as a chart save without a file number or a restore document
// missing its required fields
var ErrValidation = errors.New("validation failed")

// ErrPasswordVerify is returned when a password update committed but the
// read-after-write verification did not observe the new hash. Distinct from
// a write failure so callers can tell "write failed" from "write succeeded
// but isn't visible yet".
var ErrPasswordVerify = errors.New("password write could not be verified")

// ErrStorageTimeout is returned when a caller-imposed wait on a storage
// operation exceeded its deadline
var ErrStorageTimeout = errors.New("storage operation timed out")

// Chart type constants
const (
	ChartTypeNew      = "new"       // First visit for a complaint
	ChartTypeFollowUp = "follow-up" // Subsequent visit
)

// Account represents a registered practitioner.
// Accounts start unapproved and cannot log in until an admin approves them.
type Account struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	ClinicName         string     `json:"clinicName,omitempty"`
	TherapistName      string     `json:"therapistName,omitempty"`
	TherapistLicenseNo string     `json:"therapistLicenseNo,omitempty"`
	IsAdmin            bool       `json:"isAdmin"`
	IsApproved         bool       `json:"isApproved"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy         string     `json:"approvedBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ChartRecord is one stored clinical visit document. At most one record
// exists per (UserID, FileNo, VisitDate) triple; the same FileNo recurs
// across visit dates as a patient's history accumulates. ChartData is an
// opaque payload owned by the form layer and never interpreted here.
type ChartRecord struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"userId"`
	FileNo    string          `json:"fileNo"`
	VisitDate string          `json:"date"`
	ChartType string          `json:"chartType"`
	ChartData json.RawMessage `json:"chartData"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ClinicProfile holds the per-user clinic settings. At most one per account.
type ClinicProfile struct {
	UserID             string    `json:"userId"`
	ClinicName         string    `json:"clinicName,omitempty"`
	ClinicLogo         string    `json:"clinicLogo,omitempty"`
	TherapistName      string    `json:"therapistName,omitempty"`
	TherapistLicenseNo string    `json:"therapistLicenseNo,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ProfileUpdate carries a partial account profile change.
// Nil fields are left untouched. Credentials are never updated through this.
type ProfileUpdate struct {
	ClinicName         *string `json:"clinicName"`
	TherapistName      *string `json:"therapistName"`
	TherapistLicenseNo *string `json:"therapistLicenseNo"`
}

// ClinicUpdate carries a partial clinic profile change. Nil fields are
// left untouched on upsert.
type ClinicUpdate struct {
	ClinicName         *string `json:"clinicName"`
	ClinicLogo         *string `json:"clinicLogo"`
	TherapistName      *string `json:"therapistName"`
	TherapistLicenseNo *string `json:"therapistLicenseNo"`
}

// BackupDocument is the portable export of one user's data.
type BackupDocument struct {
	UserID        string         `json:"userId"`
	ExportedAt    time.Time      `json:"exportedAt"`
	SchemaVersion int            `json:"schemaVersion"`
	Charts        []*ChartRecord `json:"charts"`
	Clinic        *ClinicProfile `json:"clinic,omitempty"`
}

// AccountStore defines the interface for account persistence
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	UpdateAccountProfile(ctx context.Context, id string, update ProfileUpdate) (*Account, error)
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error
	ApproveAccount(ctx context.Context, id, approvedBy string) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]*Account, error)
	ListPendingAccounts(ctx context.Context) ([]*Account, error)
	CountAccounts(ctx context.Context) (int, error)
}

// ChartStore defines the interface for chart record persistence
type ChartStore interface {
	SaveChart(ctx context.Context, rec *ChartRecord) (*ChartRecord, error)
	SaveChartAsNew(ctx context.Context, rec *ChartRecord) (*ChartRecord, error)
	GetChart(ctx context.Context, userID string, id int64) (*ChartRecord, error)
	ListChartsByUser(ctx context.Context, userID string) ([]*ChartRecord, error)
	ListChartsByFileNo(ctx context.Context, userID, fileNo string) ([]*ChartRecord, error)
	DeleteChartByID(ctx context.Context, userID string, id int64) error
	DeleteChart(ctx context.Context, userID, fileNo, visitDate string) error
}

// ClinicStore defines the interface for clinic profile persistence
type ClinicStore interface {
	GetClinicProfile(ctx context.Context, userID string) (*ClinicProfile, error)
	SaveClinicProfile(ctx context.Context, userID string, update ClinicUpdate) (*ClinicProfile, error)
}

// BackupStore defines the interface for whole-user export and restore
type BackupStore interface {
	ExportUserData(ctx context.Context, userID string) (*BackupDocument, error)
	RestoreUserData(ctx context.Context, doc *BackupDocument) (int, error)
}
