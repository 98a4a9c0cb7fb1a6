package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/internal/infrastructure/syncqueue"
	"github.com/fastygo/taskflow/repository"
	"github.com/fastygo/taskflow/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// PendingStore is the durable queue of profile upserts, see syncqueue.Store.
type PendingStore interface {
	Put(p syncqueue.Pending) error
	Batch(limit int) ([]syncqueue.Pending, error)
	Settle(p syncqueue.Pending, next *syncqueue.Pending) (bool, error)
	Prune(olderThan time.Time) (int, error)
}

// SyncConfig controls how the queue is drained.
type SyncConfig struct {
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Synced  int
	Failed  int
	Dropped int
	Pruned  int
	// Superseded counts entries left alone because a newer profile for the
	// same user was queued while they were being replayed.
	Superseded int
	Skipped    bool
}

// ProfileSync queues profile upserts that failed and replays them once
// Postgres is reachable again.
type ProfileSync struct {
	store   PendingStore
	monitor ConnectionHealth
	users   repository.UserRepository
	logger  *zap.Logger
	cfg     SyncConfig
	now     func() time.Time
}

func NewProfileSync(store PendingStore, monitor ConnectionHealth, users repository.UserRepository, logger *zap.Logger, cfg SyncConfig) *ProfileSync {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileSync{
		store:   store,
		monitor: monitor,
		users:   users,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// BufferProfile persists user for a later drain.
func (s *ProfileSync) BufferProfile(_ context.Context, user *domain.User, cause error) error {
	if s == nil || s.store == nil || user == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	p := syncqueue.Pending{
		UserID:   user.ID,
		Profile:  payload,
		QueuedAt: s.now(),
	}
	if cause != nil {
		p.LastErr = cause.Error()
	}
	return s.store.Put(p)
}

// Drain replays up to BatchSize pending profiles. It does nothing while the
// monitor reports Postgres offline.
func (s *ProfileSync) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	if s == nil || s.store == nil {
		return res, nil
	}
	if s.monitor != nil && !s.monitor.IsOnline() {
		s.logger.Debug("skipping profile sync (offline)")
		res.Skipped = true
		return res, nil
	}

	pruned, err := s.store.Prune(s.now().Add(-s.cfg.Retention))
	if err != nil {
		return res, err
	}
	res.Pruned = pruned
	if pruned > 0 {
		s.logger.Warn("pruned stale profile syncs", zap.Int("count", pruned))
	}

	items, err := s.store.Batch(s.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		taken := item
		if err := s.replay(ctx, item); err != nil {
			s.logger.Error("failed to sync buffered profile",
				zap.String("user_id", item.UserID),
				zap.Int("attempts", item.Attempts+1),
				zap.Error(err))

			item.Attempts++
			item.LastErr = err.Error()
			if item.Attempts >= s.cfg.MaxRetries {
				if s.settle(&res, taken, nil) {
					s.logger.Warn("dropping buffered profile (max retries reached)", zap.String("user_id", item.UserID))
					res.Dropped++
				}
				continue
			}
			if s.settle(&res, taken, &item) {
				res.Failed++
			}
			continue
		}

		s.settle(&res, taken, nil)
		res.Synced++
	}
	return res, nil
}

// settle applies the outcome for taken unless a newer profile replaced it.
func (s *ProfileSync) settle(res *DrainResult, taken syncqueue.Pending, next *syncqueue.Pending) bool {
	ok, err := s.store.Settle(taken, next)
	if err != nil {
		s.logger.Error("failed to settle buffered profile", zap.String("user_id", taken.UserID), zap.Error(err))
		return false
	}
	if !ok {
		s.logger.Debug("buffered profile superseded", zap.String("user_id", taken.UserID))
		res.Superseded++
	}
	return ok
}

func (s *ProfileSync) replay(ctx context.Context, item syncqueue.Pending) error {
	var user domain.User
	if err := json.Unmarshal(item.Profile, &user); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = item.UserID
	}
	return s.users.Upsert(ctx, &user)
}

var _ usecase.ProfileBuffer = (*ProfileSync)(nil)
