// ABOUTME: Account lifecycle service: registration, login, approval workflow
// ABOUTME: Issues session tokens and enforces the therapist approval gate

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjoekim64/dxchart/internal/auth"
	"github.com/sjoekim64/dxchart/internal/notify"
	"github.com/sjoekim64/dxchart/internal/store"
)

// Service errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPendingApproval    = errors.New("account is pending approval")
	ErrReservedUsername   = errors.New("username is reserved")
	ErrNotPending         = errors.New("account is not pending")
)

// reservedUsernames cannot be claimed through self-registration. The admin
// account is provisioned from config at startup.
var reservedUsernames = []string{"admin"}

// Session is a successful authentication result.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Account   *store.Account `json:"account"`
}

// RegisterRequest carries a self-registration submission.
type RegisterRequest struct {
	Username           string `json:"username"`
	Password           string `json:"password"`
	ClinicName         string `json:"clinicName"`
	TherapistName      string `json:"therapistName"`
	TherapistLicenseNo string `json:"therapistLicenseNo"`
}

// Service implements account management on top of an AccountStore.
type Service struct {
	store     store.AccountStore
	tokens    *auth.JWTVerifier
	notifier  notify.Notifier
	tokenTTL  time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

// NewService creates an account service.
func NewService(st store.AccountStore, tokens *auth.JWTVerifier, notifier notify.Notifier, tokenTTL, opTimeout time.Duration) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		store:     st,
		tokens:    tokens,
		notifier:  notifier,
		tokenTTL:  tokenTTL,
		opTimeout: opTimeout,
		logger:    slog.Default().With("component", "account"),
	}
}

// Register creates a new unapproved account and returns a session for it.
// The session lets the client show pending status; data access stays gated
// until an administrator approves the account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	password := req.Password

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	for _, reserved := range reservedUsernames {
		if strings.EqualFold(username, reserved) {
			return nil, ErrReservedUsername
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := &store.Account{
		ID:                 uuid.NewString(),
		Username:           username,
		PasswordHash:       hash,
		ClinicName:         strings.TrimSpace(req.ClinicName),
		TherapistName:      strings.TrimSpace(req.TherapistName),
		TherapistLicenseNo: strings.TrimSpace(req.TherapistLicenseNo),
		IsApproved:         false,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.CreateAccount(ctx, acct)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "username", acct.Username, "id", acct.ID)

	// Alert the administrator out of band. Delivery failures must not
	// affect the registration result.
	go s.notifier.Notify(context.WithoutCancel(ctx), notify.Message{
		Kind:          notify.KindRegistration,
		Username:      acct.Username,
		ClinicName:    acct.ClinicName,
		TherapistName: acct.TherapistName,
	})

	return s.newSession(acct)
}

// Login authenticates a username and password and returns a session.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)

	var acct *store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccountByUsername(ctx, username)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn equivalent work so the response time does not leak
			// whether the username exists.
			auth.DummyCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(acct.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !acct.IsApproved {
		return nil, ErrPendingApproval
	}

	s.logger.Info("login", "username", acct.Username, "id", acct.ID)
	return s.newSession(acct)
}

// VerifyToken validates a session token and loads its account. A token whose
// account has been deleted is invalid.
func (s *Service) VerifyToken(ctx context.Context, token string) (*store.Account, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	var acct *store.Account
	err = s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccount(ctx, claims.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}

	return acct, nil
}

// Approve marks a pending account approved. Approving an already-approved
// account is a no-op.
func (s *Service) Approve(ctx context.Context, accountID, approvedBy string) error {
	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.ApproveAccount(ctx, accountID, approvedBy)
	}); err != nil {
		return err
	}

	var acct *store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccount(ctx, accountID)
		return err
	})
	if err == nil {
		s.logger.Info("account approved", "username", acct.Username, "by", approvedBy)
		go s.notifier.Notify(context.WithoutCancel(ctx), notify.Message{
			Kind:     notify.KindApproval,
			Username: acct.Username,
		})
	}
	return nil
}

// Reject removes a pending registration. Approved accounts cannot be
// rejected; delete them explicitly instead.
func (s *Service) Reject(ctx context.Context, accountID string) error {
	var acct *store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return err
	}

	if acct.IsApproved {
		return ErrNotPending
	}

	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.DeleteAccount(ctx, accountID)
	}); err != nil {
		return err
	}

	s.logger.Info("registration rejected", "username", acct.Username, "id", accountID)
	return nil
}

// Delete removes an account regardless of approval state.
func (s *Service) Delete(ctx context.Context, accountID string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.store.DeleteAccount(ctx, accountID)
	})
}

// ListPending returns accounts awaiting approval, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*store.Account, error) {
	var accts []*store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		accts, err = s.store.ListPendingAccounts(ctx)
		return err
	})
	return accts, err
}

// ListAll returns every account, oldest first.
func (s *Service) ListAll(ctx context.Context) ([]*store.Account, error) {
	var accts []*store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		accts, err = s.store.ListAccounts(ctx)
		return err
	})
	return accts, err
}

// UpdateProfile applies a partial profile update and returns the result.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, update store.ProfileUpdate) (*store.Account, error) {
	var acct *store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.UpdateAccountProfile(ctx, accountID, update)
		return err
	})
	return acct, err
}

// UpdatePassword verifies the current password and replaces it.
func (s *Service) UpdatePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", store.ErrValidation)
	}

	var acct *store.Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccountByUsername(ctx, username)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.DummyCompare(currentPassword)
			return ErrInvalidCredentials
		}
		return err
	}

	if !auth.VerifyPassword(acct.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.UpdateAccountPassword(ctx, acct.ID, hash)
	}); err != nil {
		return err
	}

	s.logger.Info("password updated", "username", acct.Username)
	return nil
}

// Bootstrap ensures a pre-approved administrator account exists with the
// given credentials. Called once at startup from config; a no-op when the
// username is already registered.
func (s *Service) Bootstrap(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	err := s.do(ctx, func(ctx context.Context) error {
		_, err := s.store.GetAccountByUsername(ctx, username)
		return err
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	acct := &store.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
		IsApproved:   true,
		ApprovedAt:   &now,
		ApprovedBy:   "system",
		CreatedAt:    now,
	}

	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.CreateAccount(ctx, acct)
	}); err != nil {
		// Lost a race against a concurrent bootstrap
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil
		}
		return err
	}

	s.logger.Info("administrator account provisioned", "username", username)
	return nil
}

func (s *Service) newSession(acct *store.Account) (*Session, error) {
	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.tokens.Generate(acct.ID, acct.Username, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Account: acct}, nil
}

// do runs a store operation under the configured timeout. A deadline hit is
// reported as a storage timeout.
func (s *Service) do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return store.ErrStorageTimeout
	}
	return err
}
