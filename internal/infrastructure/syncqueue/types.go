package syncqueue

import (
	"encoding/json"
	"time"
)

// Pending is a user profile upsert that could not reach Postgres and waits
// for the next drain. Entries are keyed by user id, so a newer profile for
// the same user replaces an older one.
type Pending struct {
	UserID   string          `json:"user_id"`
	Profile  json.RawMessage `json:"profile"`
	Attempts int             `json:"attempts"`
	QueuedAt time.Time       `json:"queued_at"`
	LastErr  string          `json:"last_error,omitempty"`
}

func (p *Pending) normalize() {
	if p.QueuedAt.IsZero() {
		p.QueuedAt = time.Now()
	}
}
