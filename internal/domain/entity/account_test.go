package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationToken(t *testing.T) {
	a := &Account{}
	require.True(t, a.VerificationTokenIssuedAt.IsZero())

	a.GenerateVerificationToken()
	first := a.VerificationToken

	require.NotEmpty(t, first)
	require.False(t, a.VerificationTokenIssuedAt.IsZero())

	// Backdate the stamp so regeneration provably advances it.
	a.VerificationTokenIssuedAt = time.Now().Add(-time.Hour)
	staleAt := a.VerificationTokenIssuedAt

	a.GenerateVerificationToken()
	assert.NotEqual(t, first, a.VerificationToken, "regenerated token must differ")
	assert.True(t, a.VerificationTokenIssuedAt.After(staleAt), "regeneration must advance the issuance stamp")
}

func TestIsValidToken(t *testing.T) {
	a := &Account{}
	assert.False(t, a.IsValidToken(""), "no token issued matches nothing")
	assert.False(t, a.IsValidToken("anything"))

	a.GenerateVerificationToken()
	assert.True(t, a.IsValidToken(a.VerificationToken))
	assert.False(t, a.IsValidToken("wrong"))
	assert.False(t, a.IsValidToken(a.VerificationToken+" "))
}

func TestCanResendEmail(t *testing.T) {
	tests := []struct {
		name     string
		issuedAt time.Time
		want     bool
	}{
		{"never issued", time.Time{}, true},
		{"issued 59 minutes ago", time.Now().Add(-59 * time.Minute), false},
		{"issued 61 minutes ago", time.Now().Add(-61 * time.Minute), true},
		{"issued two hours ago", time.Now().Add(-2 * time.Hour), true},
		{"issued just now", time.Now(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{VerificationTokenIssuedAt: tt.issuedAt}
			assert.Equal(t, tt.want, a.CanResendEmail())
		})
	}
}

func TestCompleteSignUpIsOneWay(t *testing.T) {
	a := &Account{}
	require.False(t, a.EmailVerified)
	require.Nil(t, a.JoinedAt)

	a.CompleteSignUp()

	assert.True(t, a.EmailVerified)
	require.NotNil(t, a.JoinedAt)
	assert.WithinDuration(t, time.Now(), *a.JoinedAt, time.Second)
}

func TestTokenPairMovesTogether(t *testing.T) {
	a := &Account{
		VerificationToken:         "stale-token",
		VerificationTokenIssuedAt: time.Now().Add(-time.Hour),
	}
	staleAt := a.VerificationTokenIssuedAt

	a.GenerateVerificationToken()
	assert.NotEqual(t, "stale-token", a.VerificationToken)
	assert.True(t, a.VerificationTokenIssuedAt.After(staleAt), "token and stamp are replaced together")
}
