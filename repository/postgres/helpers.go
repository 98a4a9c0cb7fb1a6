package postgres

import (
	"time"
)

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func clampLimit(limit int) interface{} {
	if limit <= 0 {
		// LIMIT NULL returns every row.
		return nil
	}
	return limit
}
