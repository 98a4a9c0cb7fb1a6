// Package testutil provides in-memory repositories for tests that should not
// need Postgres or Redis.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/repository"
)

// TaskStore is an in-memory repository.TaskRepository with the same
// ownership semantics as the Postgres implementation.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	seq   time.Duration
	now   func() time.Time

	// Err, when set, is returned by every call.
	Err error
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]domain.Task),
		now:   time.Now,
	}
}

// Count returns the number of stored tasks regardless of owner.
func (s *TaskStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TaskStore) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return out[:0], nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *TaskStore) GetByID(_ context.Context, userID, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (s *TaskStore) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if task == nil || task.ID == "" {
		return nil, errors.New("testutil: task without id")
	}
	t := *task
	// Strictly increasing timestamps keep ordering deterministic.
	s.seq += time.Millisecond
	t.CreatedAt = s.now().UTC().Add(s.seq)
	t.UpdatedAt = t.CreatedAt
	s.tasks[t.ID] = t
	return &t, nil
}

func (s *TaskStore) Update(_ context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	current, ok := s.tasks[task.ID]
	if !ok || current.UserID != task.UserID {
		return nil, domain.ErrTaskNotFound
	}
	t := *task
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = s.now().UTC()
	s.tasks[t.ID] = t
	return &t, nil
}

func (s *TaskStore) Patch(_ context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	patch.Apply(&t)
	t.UpdatedAt = s.now().UTC()
	s.tasks[id] = t
	return &t, nil
}

func (s *TaskStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu    sync.Mutex
	users map[string]domain.User

	Err     error
	Upserts int
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) Upsert(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Upserts++
	u := *user
	now := time.Now().UTC()
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return nil
}

// SessionStore is an in-memory repository.SessionRepository.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session

	Err error
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	session, ok := s.sessions[id]
	if !ok || (!session.ExpiresAt.IsZero() && session.IsExpired(time.Now())) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	s.sessions[session.ID] = *session
	return nil
}

var (
	_ repository.TaskRepository    = (*TaskStore)(nil)
	_ repository.UserRepository    = (*UserStore)(nil)
	_ repository.SessionRepository = (*SessionStore)(nil)
)
