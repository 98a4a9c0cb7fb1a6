package monitor

import "time"

// Status is the last observed health of the service's dependencies.
type Status struct {
	PostgreSQL   bool      `json:"postgresql"`
	Redis        bool      `json:"redis"`
	RedisEnabled bool      `json:"redis_enabled"`
	SyncQueue    bool      `json:"sync_queue"`
	SyncPending  int       `json:"sync_pending"`
	LastCheck    time.Time `json:"last_check"`
}

// Healthy reports whether every required dependency answered the last probe.
func (s Status) Healthy() bool {
	return s.PostgreSQL && (s.Redis || !s.RedisEnabled)
}
