package usecase

import (
	"context"

	"github.com/fastygo/taskflow/domain"
)

// ProfileBuffer keeps a user profile upsert for later when Postgres refuses it,
// so identity sync never blocks a request.
type ProfileBuffer interface {
	BufferProfile(ctx context.Context, user *domain.User, cause error) error
}
