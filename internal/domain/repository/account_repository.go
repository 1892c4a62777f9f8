package repository

import (
	"context"
	"errors"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
)

// ErrNotFound is returned by lookups that match no account.
var ErrNotFound = errors.New("account not found")

// AccountRepository defines the interface for account persistence.
// Email and nickname uniqueness are enforced by the database; ExistsBy*
// exist so callers can pre-check and surface a friendly conflict.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByNickname(ctx context.Context, nickname string) (*entity.Account, error)
	Update(ctx context.Context, a *entity.Account) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	Count(ctx context.Context) (int64, error)
}
