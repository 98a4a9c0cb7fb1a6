package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/internal/testutil"
)

type recordingBuffer struct {
	users []*domain.User
	err   error
}

func (b *recordingBuffer) BufferProfile(_ context.Context, user *domain.User, _ error) error {
	if b.err != nil {
		return b.err
	}
	b.users = append(b.users, user)
	return nil
}

func alice() *domain.User {
	return &domain.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}
}

func TestSyncUpsertsOncePerSession(t *testing.T) {
	users := testutil.NewUserStore()
	uc := New(users, testutil.NewSessionStore(), nil, time.Hour, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := uc.Sync(ctx, alice(), "sess-1"); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
	}
	if users.Upserts != 1 {
		t.Errorf("upserts = %d, want 1", users.Upserts)
	}

	if err := uc.Sync(ctx, alice(), "sess-2"); err != nil {
		t.Fatal(err)
	}
	if users.Upserts != 2 {
		t.Errorf("new session should re-sync, upserts = %d", users.Upserts)
	}
}

func TestSyncWithoutSessionStoreAlwaysUpserts(t *testing.T) {
	users := testutil.NewUserStore()
	uc := New(users, nil, nil, 0, nil)

	_ = uc.Sync(context.Background(), alice(), "sess")
	_ = uc.Sync(context.Background(), alice(), "sess")
	if users.Upserts != 2 {
		t.Errorf("upserts = %d, want 2", users.Upserts)
	}

	got, err := uc.GetProfile(context.Background(), "alice")
	if err != nil || got.Email != "alice@example.com" {
		t.Errorf("GetProfile() = %+v, %v", got, err)
	}
}

func TestSyncBuffersOnFailure(t *testing.T) {
	users := testutil.NewUserStore()
	users.Err = errors.New("database is down")
	sessions := testutil.NewSessionStore()
	buf := &recordingBuffer{}
	uc := New(users, sessions, buf, time.Hour, nil)

	if err := uc.Sync(context.Background(), alice(), "sess"); err != nil {
		t.Fatalf("Sync() error = %v, want buffered success", err)
	}
	if len(buf.users) != 1 || buf.users[0].ID != "alice" {
		t.Errorf("buffered = %+v", buf.users)
	}
	if _, err := sessions.Get(context.Background(), "sess"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("marker must not be stored for an unsynced profile")
	}
}

func TestSyncReportsDoubleFailure(t *testing.T) {
	users := testutil.NewUserStore()
	users.Err = errors.New("database is down")
	uc := New(users, nil, &recordingBuffer{err: errors.New("disk full")}, time.Hour, nil)

	if err := uc.Sync(context.Background(), alice(), "sess"); err == nil {
		t.Fatal("expected error when both upsert and buffer fail")
	}
}

func TestSyncRejectsAnonymous(t *testing.T) {
	uc := New(testutil.NewUserStore(), nil, nil, 0, nil)
	if err := uc.Sync(context.Background(), &domain.User{}, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Sync() error = %v", err)
	}
}
