package entity

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// ResendCooldown is the minimum interval between two verification-mail
// issuances for the same account. Confirm-resend and login-link requests
// share this single policy.
const ResendCooldown = time.Hour

// Account is the aggregate root for the membership domain.
// PasswordHash is a bcrypt hash; the raw password never touches this struct.
type Account struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash string

	EmailVerified             bool
	VerificationToken         string
	VerificationTokenIssuedAt time.Time
	JoinedAt                  *time.Time

	Bio        string
	URL        string
	Occupation string
	Location   string
	AvatarURL  string

	StudyCreatedByEmail     bool
	StudyCreatedByWeb       bool
	EnrollmentResultByEmail bool
	EnrollmentResultByWeb   bool
	StudyUpdatedByEmail     bool
	StudyUpdatedByWeb       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateVerificationToken replaces the current token with a fresh
// 128-bit random value and stamps the issuance time. Token and timestamp
// always change together; persistence is the caller's responsibility.
func (a *Account) GenerateVerificationToken() {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	a.VerificationToken = base64.RawURLEncoding.EncodeToString(b)
	a.VerificationTokenIssuedAt = time.Now()
}

// IsValidToken reports whether candidate exactly matches the stored token.
// An account that never issued a token matches nothing.
func (a *Account) IsValidToken(candidate string) bool {
	return a.VerificationToken != "" && a.VerificationToken == candidate
}

// CanResendEmail reports whether a new verification mail may be issued:
// never issued before, or issued strictly more than ResendCooldown ago.
// Issuance at exactly the cooldown boundary is still throttled.
func (a *Account) CanResendEmail() bool {
	if a.VerificationTokenIssuedAt.IsZero() {
		return true
	}
	return a.VerificationTokenIssuedAt.Before(time.Now().Add(-ResendCooldown))
}

// CompleteSignUp marks the email as verified and records the join time.
func (a *Account) CompleteSignUp() {
	a.EmailVerified = true
	now := time.Now()
	a.JoinedAt = &now
}
