package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/internal/domain/repository"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrInvalidToken       = errors.New("invalid verification token")
	ErrThrottled          = errors.New("verification email recently sent")
)

// Hasher turns raw passwords into opaque hashes and verifies them.
type Hasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// MessageSender dispatches an outbound message. Fire-and-forget: delivery
// confirmation never reaches the core.
type MessageSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service orchestrates the account lifecycle: registration, verification
// tokens, login links, sessions, and the settings flows around them.
type Service struct {
	Repo   repository.AccountRepository
	Hasher Hasher
	Sender MessageSender
	JWT    *helpers.JWTManager
	Redis  *redis.Client
	Logger *logrus.Logger

	GCS       *storage.Client
	GCSBucket string

	ES      *elasticsearch.Client
	ESIndex string

	AppName string
	BaseURL string
}

func NewService(r repository.AccountRepository, hasher Hasher, sender MessageSender, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, appName, baseURL string) *Service {
	return &Service{
		Repo:    r,
		Hasher:  hasher,
		Sender:  sender,
		JWT:     jwt,
		Redis:   rdb,
		Logger:  logger,
		AppName: appName,
		BaseURL: baseURL,
	}
}

func sessionKey(accountID string) string {
	return "account:session:" + accountID
}

type RegisterInput struct {
	Email    string
	Nickname string
	Password string
}

// Register persists a new unverified account and sends the sign-up
// confirmation mail. Email/nickname uniqueness has already been checked by
// the caller; a duplicate-key race surfaces as a repository error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.Account, error) {
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	a := &entity.Account{
		Email:                 in.Email,
		Nickname:              in.Nickname,
		PasswordHash:          hash,
		StudyCreatedByWeb:     true,
		EnrollmentResultByWeb: true,
		StudyUpdatedByWeb:     true,
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if err := s.sendVerificationMail(ctx, a,
		"Welcome to "+s.AppName+", confirm your email",
		"/check-email-token",
		"Thanks for joining. Confirm your email address to finish signing up."); err != nil {
		return nil, err
	}
	return a, nil
}

// CompleteSignUp flips the one-way verified gate and establishes a session.
// The caller has already validated the presented token with IsValidToken.
func (s *Service) CompleteSignUp(ctx context.Context, a *entity.Account) (*Session, error) {
	a.CompleteSignUp()
	if err := s.Repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.EstablishSession(ctx, a)
}

// ResendConfirmationEmail reissues the verification token and mail, subject
// to the shared one-hour cooldown.
func (s *Service) ResendConfirmationEmail(ctx context.Context, a *entity.Account) error {
	if !a.CanResendEmail() {
		return ErrThrottled
	}
	return s.sendVerificationMail(ctx, a,
		"Confirm your "+s.AppName+" email",
		"/check-email-token",
		"Here is a fresh confirmation link. Confirm your email address to finish signing up.")
}

// IssueLoginLink sends a passwordless login link. It shares the cooldown
// (and the token field) with the confirmation mail.
func (s *Service) IssueLoginLink(ctx context.Context, a *entity.Account) error {
	if !a.CanResendEmail() {
		return ErrThrottled
	}
	return s.sendVerificationMail(ctx, a,
		"Log in to "+s.AppName,
		"/login-by-email",
		"Use the link below to log in without a password.")
}

// CompleteLoginByEmail establishes a session for a token-validated account.
// Verification state, join time, and the token itself stay untouched, so the
// link can be used again until a new token supersedes it.
func (s *Service) CompleteLoginByEmail(ctx context.Context, a *entity.Account) (*Session, error) {
	return s.EstablishSession(ctx, a)
}

// ChangePassword hashes and replaces the credential. Confirmation-match
// validation is the caller's concern.
func (s *Service) ChangePassword(ctx context.Context, a *entity.Account, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return s.Repo.Update(ctx, a)
}

// EstablishSession builds a principal and a signed token pair, and records
// the session in redis. The session is returned as a value; the HTTP layer
// attaches it to its own response.
func (s *Service) EstablishSession(ctx context.Context, a *entity.Account) (*Session, error) {
	p := NewPrincipal(a)
	sid := uuid.NewString()

	access, aexp, err := s.JWT.GenerateAccessToken(a.ID, a.Nickname, sid)
	if err != nil {
		return nil, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(a.ID, a.Nickname, sid)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(a.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"account_id": a.ID,
			"email":      a.Email,
			"nickname":   a.Nickname,
			"role":       p.Role,
			"sid":        sid,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, err := pipe.Exec(ctx); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("redis session write failed")
		}
	}

	return &Session{
		Principal: p,
		Tokens: TokenPair{
			AccessToken:        access,
			AccessTokenExpiry:  aexp,
			RefreshToken:       refresh,
			RefreshTokenExpiry: rexp,
		},
	}, nil
}

// Refresh validates a refresh token against the current redis session and
// rotates the session id and token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	a, err := s.Repo.GetByNickname(ctx, claims.Nickname)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, sessionKey(a.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return nil, ErrInvalidCredentials
		}
	}
	return s.EstablishSession(ctx, a)
}

// sendVerificationMail pairs token issuance with message dispatch so a token
// is never generated without an outward notification. Dispatch failure after
// the token is persisted is logged, not rolled back: the persisted token
// stays valid and the user can request a new mail.
func (s *Service) sendVerificationMail(ctx context.Context, a *entity.Account, subject, path, message string) error {
	a.GenerateVerificationToken()
	if err := s.Repo.Update(ctx, a); err != nil {
		return err
	}

	link := fmt.Sprintf("%s%s?token=%s&email=%s",
		s.BaseURL, path, a.VerificationToken, url.QueryEscape(a.Email))
	body := message + "\n\n" + link

	if err := s.Sender.Send(ctx, a.Email, subject, body); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("email", a.Email).Warn("verification mail dispatch failed")
		}
	}
	return nil
}

type ProfileInput struct {
	Bio        string
	URL        string
	Occupation string
	Location   string
	AvatarURL  string
}

// UpdateProfile replaces the profile fields wholesale, as submitted.
func (s *Service) UpdateProfile(ctx context.Context, a *entity.Account, in ProfileInput) error {
	a.Bio = in.Bio
	a.URL = in.URL
	a.Occupation = in.Occupation
	a.Location = in.Location
	a.AvatarURL = in.AvatarURL
	if err := s.Repo.Update(ctx, a); err != nil {
		return err
	}
	s.indexAccount(ctx, a)
	return nil
}

// UpdateNickname changes the secondary login identifier and re-establishes
// the session, since the principal's username just changed.
func (s *Service) UpdateNickname(ctx context.Context, a *entity.Account, nickname string) (*Session, error) {
	a.Nickname = nickname
	if err := s.Repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.indexAccount(ctx, a)
	return s.EstablishSession(ctx, a)
}

type NotificationsInput struct {
	StudyCreatedByEmail     bool
	StudyCreatedByWeb       bool
	EnrollmentResultByEmail bool
	EnrollmentResultByWeb   bool
	StudyUpdatedByEmail     bool
	StudyUpdatedByWeb       bool
}

func (s *Service) UpdateNotifications(ctx context.Context, a *entity.Account, in NotificationsInput) error {
	a.StudyCreatedByEmail = in.StudyCreatedByEmail
	a.StudyCreatedByWeb = in.StudyCreatedByWeb
	a.EnrollmentResultByEmail = in.EnrollmentResultByEmail
	a.EnrollmentResultByWeb = in.EnrollmentResultByWeb
	a.StudyUpdatedByEmail = in.StudyUpdatedByEmail
	a.StudyUpdatedByWeb = in.StudyUpdatedByWeb
	return s.Repo.Update(ctx, a)
}

// UploadAvatar stores the image in GCS and records its public URL.
func (s *Service) UploadAvatar(ctx context.Context, a *entity.Account, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("avatar storage not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", a.ID, uuid.NewString()+ext))
	publicURL, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	a.AvatarURL = publicURL
	if err := s.Repo.Update(ctx, a); err != nil {
		return "", err
	}
	s.indexAccount(ctx, a)
	return publicURL, nil
}

func (s *Service) indexAccount(ctx context.Context, a *entity.Account) {
	if s.ES == nil || s.ESIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         a.ID,
		"email":      a.Email,
		"nickname":   a.Nickname,
		"bio":        a.Bio,
		"location":   a.Location,
		"avatar_url": a.AvatarURL,
		"updated_at": a.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESIndex, DocumentID: a.ID, Body: strings.NewReader(string(b)), Refresh: "false"}

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("account_id", a.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("account_id", a.ID).Warn("es index response error")
	}
}

// SearchAccounts runs a multi_match query over nickname and email.
func (s *Service) SearchAccounts(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"nickname^2", "email"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
