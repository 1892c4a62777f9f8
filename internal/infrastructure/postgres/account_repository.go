package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
	"github.com/studycircle/studycircle-api/internal/domain/repository"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type AccountRepository struct {
	db DB
}

func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, nickname, password_hash, email_verified,
		verification_token, verification_token_issued_at, joined_at,
		bio, url, occupation, location, avatar_url,
		study_created_by_email, study_created_by_web,
		enrollment_result_by_email, enrollment_result_by_web,
		study_updated_by_email, study_updated_by_web,
		created_at, updated_at`

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (email, nickname, password_hash, email_verified,
			verification_token, verification_token_issued_at,
			study_created_by_email, study_created_by_web,
			enrollment_result_by_email, enrollment_result_by_web,
			study_updated_by_email, study_updated_by_web)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, a.Email, a.Nickname, a.PasswordHash, a.EmailVerified,
		nullString(a.VerificationToken), nullTime(a.VerificationTokenIssuedAt),
		a.StudyCreatedByEmail, a.StudyCreatedByWeb,
		a.EnrollmentResultByEmail, a.EnrollmentResultByWeb,
		a.StudyUpdatedByEmail, a.StudyUpdatedByWeb)

	return row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.getBy(ctx, "email", email)
}

func (r *AccountRepository) GetByNickname(ctx context.Context, nickname string) (*entity.Account, error) {
	return r.getBy(ctx, "nickname", nickname)
}

func (r *AccountRepository) getBy(ctx context.Context, column, value string) (*entity.Account, error) {
	a := &entity.Account{}
	var token pgtype.Text
	var issuedAt, joinedAt pgtype.Timestamptz

	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value)
	if err := row.Scan(&a.ID, &a.Email, &a.Nickname, &a.PasswordHash, &a.EmailVerified,
		&token, &issuedAt, &joinedAt,
		&a.Bio, &a.URL, &a.Occupation, &a.Location, &a.AvatarURL,
		&a.StudyCreatedByEmail, &a.StudyCreatedByWeb,
		&a.EnrollmentResultByEmail, &a.EnrollmentResultByWeb,
		&a.StudyUpdatedByEmail, &a.StudyUpdatedByWeb,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if token.Valid {
		a.VerificationToken = token.String
	}
	if issuedAt.Valid {
		a.VerificationTokenIssuedAt = issuedAt.Time
	}
	if joinedAt.Valid {
		t := joinedAt.Time
		a.JoinedAt = &t
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	a.UpdatedAt = time.Now()

	res, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET email = $1, nickname = $2, password_hash = $3, email_verified = $4,
			verification_token = $5, verification_token_issued_at = $6, joined_at = $7,
			bio = $8, url = $9, occupation = $10, location = $11, avatar_url = $12,
			study_created_by_email = $13, study_created_by_web = $14,
			enrollment_result_by_email = $15, enrollment_result_by_web = $16,
			study_updated_by_email = $17, study_updated_by_web = $18,
			updated_at = $19
		WHERE id = $20
	`, a.Email, a.Nickname, a.PasswordHash, a.EmailVerified,
		nullString(a.VerificationToken), nullTime(a.VerificationTokenIssuedAt), a.JoinedAt,
		a.Bio, a.URL, a.Occupation, a.Location, a.AvatarURL,
		a.StudyCreatedByEmail, a.StudyCreatedByWeb,
		a.EnrollmentResultByEmail, a.EnrollmentResultByWeb,
		a.StudyUpdatedByEmail, a.StudyUpdatedByWeb,
		a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.existsBy(ctx, "email", email)
}

func (r *AccountRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.existsBy(ctx, "nickname", nickname)
}

func (r *AccountRepository) existsBy(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE `+column+` = $1)`, value)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	row := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
