package shared

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IdempotencyStore remembers keys of work that was already applied: handled
// events and committed import rows
type IdempotencyStore interface {
	// MarkProcessed sets key for ttl and reports whether it was unset before
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression for event handlers
type IdempotencyConfig struct {
	// TTL after which an event ID may be handled again
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps event IDs for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}

// EventKey identifies one event as seen by one handler
func EventKey(handler string, eventID uuid.UUID) string {
	return "event:" + handler + ":" + eventID.String()
}

// ImportRowKey identifies one row of one import run
func ImportRowKey(importID string, line int) string {
	return "import:" + importID + ":" + strconv.Itoa(line)
}
