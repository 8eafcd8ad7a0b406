// ABOUTME: Tests for the account service over a real SQLite store
// ABOUTME: Covers registration, approval gating, login, and password changes

package account

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoekim64/dxchart/internal/auth"
	"github.com/sjoekim64/dxchart/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tokens := auth.NewJWTVerifier([]byte("test-secret"))
	return NewService(st, tokens, nil, time.Hour, 5*time.Second)
}

func register(t *testing.T, svc *Service, username string) *Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterRequest{
		Username:      username,
		Password:      "hunter2!",
		ClinicName:    "East Gate Clinic",
		TherapistName: "Dr. Kim",
	})
	require.NoError(t, err)
	return sess
}

func TestRegister(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")

	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.Account.ID)
	assert.Equal(t, "alice", sess.Account.Username)
	assert.Equal(t, "East Gate Clinic", sess.Account.ClinicName)
	assert.False(t, sess.Account.IsApproved)
	assert.False(t, sess.Account.IsAdmin)
	assert.False(t, sess.Account.CreatedAt.IsZero())

	// The registration token is valid even while pending
	acct, err := svc.VerifyToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Account.ID, acct.ID)

	// The persisted row carries the creation timestamp too
	assert.False(t, acct.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), acct.CreatedAt, time.Minute)
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "", Password: "pw"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Password: ""})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.Register(ctx, RegisterRequest{Username: "   ", Password: "pw"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestRegister_ReservedUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"admin", "Admin", "ADMIN"} {
		_, err := svc.Register(ctx, RegisterRequest{Username: name, Password: "pw"})
		assert.ErrorIs(t, err, ErrReservedUsername, "username %q", name)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	register(t, svc, "alice")

	_, err := svc.Register(ctx, RegisterRequest{Username: "ALICE", Password: "other"})
	assert.ErrorIs(t, err, store.ErrUsernameTaken)
}

func TestLogin_PendingApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	register(t, svc, "alice")

	// Correct credentials but unapproved account
	_, err := svc.Login(ctx, "alice", "hunter2!")
	assert.ErrorIs(t, err, ErrPendingApproval)

	// Wrong password on a pending account still reads as bad credentials
	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_AfterApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Approve(ctx, sess.Account.ID, "admin-1"))

	loginSess, err := svc.Login(ctx, "alice", "hunter2!")
	require.NoError(t, err)
	assert.True(t, loginSess.Account.IsApproved)
	assert.NotEmpty(t, loginSess.Token)

	acct, err := svc.VerifyToken(ctx, loginSess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken_DeletedAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Delete(ctx, sess.Account.ID))

	_, err := svc.VerifyToken(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.VerifyToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestApprove_Idempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Approve(ctx, sess.Account.ID, "admin-1"))
	require.NoError(t, svc.Approve(ctx, sess.Account.ID, "admin-2"))

	acct, err := svc.VerifyToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", acct.ApprovedBy)
}

func TestApprove_NotFound(t *testing.T) {
	svc := newTestService(t)

	err := svc.Approve(context.Background(), "nonexistent", "admin-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Reject(ctx, sess.Account.ID))

	_, err := svc.Login(ctx, "alice", "hunter2!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Username is free again
	register(t, svc, "alice")
}

func TestReject_ApprovedAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Approve(ctx, sess.Account.ID, "admin-1"))

	err := svc.Reject(ctx, sess.Account.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestListPendingAndAll(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := register(t, svc, "alice")
	register(t, svc, "bob")
	require.NoError(t, svc.Approve(ctx, a.Account.ID, "admin-1"))

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob", pending[0].Username)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")

	newClinic := "West Gate Clinic"
	acct, err := svc.UpdateProfile(ctx, sess.Account.ID, store.ProfileUpdate{
		ClinicName: &newClinic,
	})
	require.NoError(t, err)
	assert.Equal(t, "West Gate Clinic", acct.ClinicName)
	assert.Equal(t, "Dr. Kim", acct.TherapistName)
}

func TestUpdatePassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess := register(t, svc, "alice")
	require.NoError(t, svc.Approve(ctx, sess.Account.ID, "admin-1"))

	require.NoError(t, svc.UpdatePassword(ctx, "alice", "hunter2!", "correct horse"))

	_, err := svc.Login(ctx, "alice", "hunter2!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice", "correct horse")
	assert.NoError(t, err)
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	register(t, svc, "alice")

	err := svc.UpdatePassword(ctx, "alice", "wrong", "newpw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.UpdatePassword(ctx, "ghost", "whatever", "newpw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBootstrap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "clinicadmin", "s3cret"))

	sess, err := svc.Login(ctx, "clinicadmin", "s3cret")
	require.NoError(t, err)
	assert.True(t, sess.Account.IsAdmin)
	assert.True(t, sess.Account.IsApproved)
	assert.Equal(t, "system", sess.Account.ApprovedBy)
	assert.False(t, sess.Account.CreatedAt.IsZero())

	// Re-running with a different password must not clobber the account
	require.NoError(t, svc.Bootstrap(ctx, "clinicadmin", "different"))
	_, err = svc.Login(ctx, "clinicadmin", "s3cret")
	assert.NoError(t, err)
}

func TestBootstrap_Disabled(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Bootstrap(context.Background(), "", ""))

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
