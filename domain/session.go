package domain

import "time"

// Session marks an identity-provider session whose user profile has already
// been mirrored into the users table.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SyncedAt  time.Time `json:"synced_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}
