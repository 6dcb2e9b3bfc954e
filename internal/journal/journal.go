package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventFail  EventType = "fail"
)

// Record captures the state of one service run at the time of an event.
type Record struct {
	Name     string
	PID      int
	State    string
	ExitCode int
	Detail   string
}

// Event is one persisted lifecycle occurrence.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	Record     Record
}

// Sink persists lifecycle events. Implementations must be safe for
// concurrent use; Send failures are logged by callers, never fatal.
type Sink interface {
	Send(ctx context.Context, evt Event) error
	Close() error
}

// Config selects and parameterizes a journal backend.
type Config struct {
	Type string `json:"type" mapstructure:"type"` // "sqlite" or "postgres"
	Path string `json:"path" mapstructure:"path"` // sqlite file path
	DSN  string `json:"dsn" mapstructure:"dsn"`   // postgres DSN
}

// Open constructs the configured sink. An empty type disables journaling.
func Open(cfg Config) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "":
		return nil, nil
	case "sqlite":
		return newSQLite(cfg.Path)
	case "postgres":
		return newPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
