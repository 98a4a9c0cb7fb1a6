package redis

import (
	"context"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/repository"
)

const (
	fieldUserID    = "user_id"
	fieldSyncedAt  = "synced_at"
	fieldExpiresAt = "expires_at"
)

var errIncompleteSession = errors.New("session id and user id are required")

type sessionRepository struct {
	client redislib.Cmdable
	prefix string
	ttl    time.Duration
}

// NewSessionRepository stores synced-session markers as Redis hashes that
// expire with the session.
func NewSessionRepository(client redislib.Cmdable, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionRepository{
		client: client,
		prefix: "taskflow:session:",
		ttl:    ttl,
	}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[fieldUserID] == "" {
		return nil, domain.ErrSessionNotFound
	}

	session := &domain.Session{ID: id, UserID: fields[fieldUserID]}
	session.SyncedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldSyncedAt])
	session.ExpiresAt, _ = time.Parse(time.RFC3339Nano, fields[fieldExpiresAt])
	return session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" || session.UserID == "" {
		return errIncompleteSession
	}
	if session.SyncedAt.IsZero() {
		session.SyncedAt = time.Now()
	}
	if !session.ExpiresAt.After(session.SyncedAt) {
		session.ExpiresAt = session.SyncedAt.Add(r.ttl)
	}

	key := r.key(session.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, session.UserID,
			fieldSyncedAt, session.SyncedAt.UTC().Format(time.RFC3339Nano),
			fieldExpiresAt, session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, session.ExpiresAt)
		return nil
	})
	return err
}

func (r *sessionRepository) key(id string) string {
	return r.prefix + id
}
