package application

import (
	"context"
	"errors"
	"time"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/internal/domain/repository"
)

// RoleMember is the single authority every authenticated account carries.
const RoleMember = "member"

// Principal is the authenticated-identity value handed to the session layer.
// Username is the account's nickname; Credential is the opaque password hash.
type Principal struct {
	Account    *entity.Account
	Username   string
	Credential string
	Role       string
}

func NewPrincipal(a *entity.Account) Principal {
	return Principal{
		Account:    a,
		Username:   a.Nickname,
		Credential: a.PasswordHash,
		Role:       RoleMember,
	}
}

// TokenPair carries the signed session tokens and their expiries.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// Session is the value returned by every login path. The transport layer is
// responsible for attaching it to its own request/response context (cookies
// here); nothing in the core installs it into ambient state.
type Session struct {
	Principal Principal
	Tokens    TokenPair
}

// ResolvePrincipal looks up an account by email first, then by nickname.
// This is the lookup the credential-verification path goes through; the
// password comparison itself happens in Authenticate.
func (s *Service) ResolvePrincipal(ctx context.Context, identifier string) (Principal, error) {
	a, err := s.Repo.GetByEmail(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		a, err = s.Repo.GetByNickname(ctx, identifier)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return Principal{}, ErrPrincipalNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(a), nil
}

// Authenticate resolves the identifier and verifies the password. Every
// failure collapses into ErrInvalidCredentials so callers cannot probe
// which identifiers exist.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.Account, error) {
	p, err := s.ResolvePrincipal(ctx, identifier)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Matches(password, p.Credential) {
		return nil, ErrInvalidCredentials
	}
	return p.Account, nil
}
