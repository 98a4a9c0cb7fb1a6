package identity

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskflow/domain"
	appLogger "github.com/fastygo/taskflow/pkg/logger"
	"github.com/fastygo/taskflow/repository"
	"github.com/fastygo/taskflow/usecase"
)

// UseCase mirrors identity-provider users into the users table. A session is
// synced at most once while its marker lives in the session store.
type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	buffer   usecase.ProfileBuffer
	ttl      time.Duration
	logger   *zap.Logger
}

// New builds the use case. sessions and buffer may be nil: without sessions
// every request upserts, without a buffer failed upserts are only logged.
func New(users repository.UserRepository, sessions repository.SessionRepository, buffer usecase.ProfileBuffer, ttl time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		buffer:   buffer,
		ttl:      ttl,
		logger:   logger,
	}
}

// Sync upserts user unless sessionID was already synced. A failed upsert is
// handed to the profile buffer; the returned error is for logging only.
func (uc *UseCase) Sync(ctx context.Context, user *domain.User, sessionID string) error {
	if user == nil || user.ID == "" {
		return domain.ErrUnauthorized
	}
	log := appLogger.FromContext(ctx, uc.logger)

	if uc.synced(ctx, user.ID, sessionID) {
		return nil
	}

	if err := uc.users.Upsert(ctx, user); err != nil {
		if uc.buffer == nil {
			return err
		}
		if bufErr := uc.buffer.BufferProfile(ctx, user, err); bufErr != nil {
			log.Error("failed to buffer profile sync", zap.Error(bufErr))
			return errors.Join(err, bufErr)
		}
		log.Warn("profile sync buffered", zap.Error(err))
		return nil
	}

	if uc.sessions == nil || sessionID == "" {
		return nil
	}
	now := time.Now()
	marker := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		SyncedAt:  now,
		ExpiresAt: now.Add(uc.ttl),
	}
	if err := uc.sessions.Save(ctx, marker); err != nil {
		log.Warn("failed to store session marker", zap.Error(err))
	}
	return nil
}

// GetProfile returns the mirrored user row.
func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

func (uc *UseCase) synced(ctx context.Context, userID, sessionID string) bool {
	if uc.sessions == nil || sessionID == "" {
		return false
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			appLogger.FromContext(ctx, uc.logger).Warn("session lookup failed", zap.Error(err))
		}
		return false
	}
	return session.UserID == userID && !session.IsExpired(time.Now())
}
