package repository

import (
	"context"

	"github.com/fastygo/taskflow/domain"
)

// SessionRepository keeps synced-session markers. Markers expire on their own;
// there is no explicit delete.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
}
