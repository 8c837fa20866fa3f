// Package events records analytics events for the external reporting
// surface. Recording is best effort: a failed insert is logged and
// swallowed, never surfaced to the operation that emitted the event.
package events

import (
	"context"
	"io"
	"log"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one fire-and-forget analytics record.
type Event struct {
	Type       string
	UserID     *string
	SessionID  *string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
}

// Recorder accepts events. Implementations must never block the caller's
// transaction or return business errors.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

type postgresRecorder struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Recorder that inserts into user_events.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Recorder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRecorder{pool: pool, logger: logger}
}

func (r *postgresRecorder) Record(ctx context.Context, e Event) {
	// Detach from the caller's context: the event outlives the request but
	// must not hold resources forever.
	go func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		metadata := []byte("{}")
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				r.logger.Printf("events: marshal metadata type=%s error=%v", e.Type, err)
			} else {
				metadata = b
			}
		}

		_, err := r.pool.Exec(insertCtx, `
INSERT INTO user_events (event_type, user_id, session_id, entity_type, entity_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
`, e.Type, e.UserID, e.SessionID, e.EntityType, e.EntityID, metadata)
		if err != nil {
			r.logger.Printf("events: record type=%s entity=%s/%s error=%v", e.Type, e.EntityType, e.EntityID, err)
		}
	}()
}

// Noop drops every event. Useful in tests and when analytics is disabled.
type Noop struct{}

func (Noop) Record(context.Context, Event) {}
