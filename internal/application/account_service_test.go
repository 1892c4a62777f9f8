package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/internal/domain/repository"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

type fakeRepo struct {
	byEmail    map[string]*entity.Account
	byNickname map[string]*entity.Account
	createErr  error
	updateErr  error
	updated    int
}

func newFakeRepo(accounts ...*entity.Account) *fakeRepo {
	r := &fakeRepo{
		byEmail:    map[string]*entity.Account{},
		byNickname: map[string]*entity.Account{},
	}
	for _, a := range accounts {
		r.byEmail[a.Email] = a
		r.byNickname[a.Nickname] = a
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, a *entity.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	a.ID = "acc-" + a.Nickname
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.byEmail[a.Email] = a
	r.byNickname[a.Nickname] = a
	return nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	if a, ok := r.byEmail[email]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) GetByNickname(_ context.Context, nickname string) (*entity.Account, error) {
	if a, ok := r.byNickname[nickname]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) Update(_ context.Context, _ *entity.Account) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated++
	return nil
}

func (r *fakeRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *fakeRepo) ExistsByNickname(_ context.Context, nickname string) (bool, error) {
	_, ok := r.byNickname[nickname]
	return ok, nil
}

func (r *fakeRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.byEmail)), nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (fakeHasher) Matches(plain, hash string) bool   { return hash == "hashed:"+plain }

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func newTestService(r *fakeRepo, sender *fakeSender) *Service {
	logger := logrus.New()
	logger.SetOutput(nullWriter{})
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return NewService(r, fakeHasher{}, sender, jwt, nil, logger, "studycircle", "http://localhost:8080")
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestService_Register(t *testing.T) {
	r := newFakeRepo()
	sender := &fakeSender{}
	svc := newTestService(r, sender)

	a, err := svc.Register(context.Background(), RegisterInput{
		Email:    "amara@x.com",
		Nickname: "amara",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.Equal(t, "hashed:secret123", a.PasswordHash)
	assert.False(t, a.EmailVerified)
	assert.Nil(t, a.JoinedAt)
	assert.NotEmpty(t, a.VerificationToken, "registration issues a verification token")
	assert.True(t, a.StudyCreatedByWeb)
	assert.True(t, a.EnrollmentResultByWeb)
	assert.True(t, a.StudyUpdatedByWeb)
	assert.False(t, a.StudyCreatedByEmail)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "amara@x.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "/check-email-token?token="+a.VerificationToken)
	assert.Contains(t, sender.sent[0].Body, "email=amara%40x.com")
}

func TestService_Register_SendFailureDoesNotFail(t *testing.T) {
	r := newFakeRepo()
	sender := &fakeSender{err: errors.New("broker down")}
	svc := newTestService(r, sender)

	a, err := svc.Register(context.Background(), RegisterInput{
		Email:    "b@x.com",
		Nickname: "bruno",
		Password: "secret123",
	})
	require.NoError(t, err, "dispatch failure after persist is logged, not returned")
	assert.NotEmpty(t, a.VerificationToken, "token stays persisted even when the mail never left")
}

func TestService_CompleteSignUp(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara"}
	a.GenerateVerificationToken()
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	sess, err := svc.CompleteSignUp(context.Background(), a)
	require.NoError(t, err)

	assert.True(t, a.EmailVerified)
	require.NotNil(t, a.JoinedAt)
	assert.Equal(t, "amara", sess.Principal.Username)
	assert.Equal(t, RoleMember, sess.Principal.Role)
	assert.NotEmpty(t, sess.Tokens.AccessToken)
	assert.NotEmpty(t, sess.Tokens.RefreshToken)
	assert.True(t, sess.Tokens.RefreshTokenExpiry.After(sess.Tokens.AccessTokenExpiry))
}

func TestService_ResendConfirmationEmail(t *testing.T) {
	tests := []struct {
		name      string
		issuedAgo time.Duration
		never     bool
		wantErr   error
		wantSent  int
	}{
		{name: "never sent before", never: true, wantSent: 1},
		{name: "sent two hours ago", issuedAgo: 2 * time.Hour, wantSent: 1},
		{name: "sent ten minutes ago", issuedAgo: 10 * time.Minute, wantErr: ErrThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara"}
			if !tt.never {
				a.VerificationToken = "old-token"
				a.VerificationTokenIssuedAt = time.Now().Add(-tt.issuedAgo)
			}
			r := newFakeRepo(a)
			sender := &fakeSender{}
			svc := newTestService(r, sender)

			err := svc.ResendConfirmationEmail(context.Background(), a)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, sender.sent, "throttled resend must not dispatch")
				assert.Equal(t, "old-token", a.VerificationToken, "throttled resend must not rotate the token")
				return
			}
			require.NoError(t, err)
			assert.Len(t, sender.sent, tt.wantSent)
			assert.NotEqual(t, "old-token", a.VerificationToken)
		})
	}
}

func TestService_IssueLoginLink_SharesCooldown(t *testing.T) {
	a := &entity.Account{
		ID: "acc-1", Email: "a@x.com", Nickname: "amara",
		VerificationToken:         "tok",
		VerificationTokenIssuedAt: time.Now().Add(-30 * time.Minute),
	}
	r := newFakeRepo(a)
	sender := &fakeSender{}
	svc := newTestService(r, sender)

	err := svc.IssueLoginLink(context.Background(), a)
	assert.ErrorIs(t, err, ErrThrottled, "confirmation mail half an hour ago blocks the login link too")
	assert.Empty(t, sender.sent)

	a.VerificationTokenIssuedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, svc.IssueLoginLink(context.Background(), a))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "/login-by-email?token=")
}

func TestService_CompleteLoginByEmail_PreservesState(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara"}
	a.GenerateVerificationToken()
	token := a.VerificationToken
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	sess, err := svc.CompleteLoginByEmail(context.Background(), a)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Tokens.AccessToken)

	assert.False(t, a.EmailVerified, "login by email must not verify the account")
	assert.Nil(t, a.JoinedAt)
	assert.Equal(t, token, a.VerificationToken, "login by email must not consume the token")
	assert.Zero(t, r.updated, "login by email writes nothing")
}

func TestService_Authenticate(t *testing.T) {
	a := &entity.Account{
		ID: "acc-1", Email: "a@x.com", Nickname: "amara",
		PasswordHash: "hashed:secret123",
	}
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	got, err = svc.Authenticate(ctx, "amara", "secret123")
	require.NoError(t, err, "nickname works as a fallback identifier")
	assert.Equal(t, "acc-1", got.ID)

	_, err = svc.Authenticate(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@x.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown identifier is indistinguishable from a bad password")
}

func TestService_ResolvePrincipal_NotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeSender{})
	_, err := svc.ResolvePrincipal(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestService_ChangePassword(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara", PasswordHash: "hashed:old"}
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	require.NoError(t, svc.ChangePassword(context.Background(), a, "newsecret"))
	assert.Equal(t, "hashed:newsecret", a.PasswordHash)
	assert.Equal(t, 1, r.updated)
}

func TestService_UpdateNickname_ReestablishesSession(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara"}
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	sess, err := svc.UpdateNickname(context.Background(), a, "amara2")
	require.NoError(t, err)
	assert.Equal(t, "amara2", a.Nickname)
	assert.Equal(t, "amara2", sess.Principal.Username)
}

func TestService_UpdateProfile(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "a@x.com", Nickname: "amara"}
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	err := svc.UpdateProfile(context.Background(), a, ProfileInput{
		Bio:        "gopher",
		URL:        "https://amara.dev",
		Occupation: "engineer",
		Location:   "Seoul",
	})
	require.NoError(t, err)
	assert.Equal(t, "gopher", a.Bio)
	assert.Equal(t, "Seoul", a.Location)
	assert.Empty(t, a.AvatarURL, "blank submitted fields clear stored values")
}

func TestService_UpdateNotifications(t *testing.T) {
	a := &entity.Account{
		ID: "acc-1", Email: "a@x.com", Nickname: "amara",
		StudyCreatedByWeb: true, EnrollmentResultByWeb: true, StudyUpdatedByWeb: true,
	}
	r := newFakeRepo(a)
	svc := newTestService(r, &fakeSender{})

	err := svc.UpdateNotifications(context.Background(), a, NotificationsInput{
		StudyCreatedByEmail: true,
		StudyUpdatedByWeb:   true,
	})
	require.NoError(t, err)
	assert.True(t, a.StudyCreatedByEmail)
	assert.False(t, a.StudyCreatedByWeb, "unchecked flags are turned off")
	assert.True(t, a.StudyUpdatedByWeb)
}

func TestService_VerificationLinkShape(t *testing.T) {
	a := &entity.Account{ID: "acc-1", Email: "plus+tag@x.com", Nickname: "plus"}
	r := newFakeRepo(a)
	sender := &fakeSender{}
	svc := newTestService(r, sender)

	require.NoError(t, svc.ResendConfirmationEmail(context.Background(), a))
	require.Len(t, sender.sent, 1)

	body := sender.sent[0].Body
	assert.True(t, strings.Contains(body, "http://localhost:8080/check-email-token?token="))
	assert.Contains(t, body, "email=plus%2Btag%40x.com", "email is query-escaped in the link")
}
