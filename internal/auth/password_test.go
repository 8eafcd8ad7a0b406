// ABOUTME: Tests for bcrypt password hashing helpers
// ABOUTME: Verifies matching, mismatches, and hash uniqueness

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPassword_Salted(t *testing.T) {
	h1, err := HashPassword("same input")
	require.NoError(t, err)
	h2, err := HashPassword("same input")
	require.NoError(t, err)

	// bcrypt salts every hash
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPassword_BadHash(t *testing.T) {
	assert.False(t, VerifyPassword("not a bcrypt hash", "anything"))
}

func TestDummyCompare(t *testing.T) {
	// Must not panic and must not verify anything
	DummyCompare("whatever")
}
