package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one telemetry record, typically a query execution.
type Event struct {
	EventType  string
	QueryID    string
	EntityID   string
	UserID     string
	DurationMs int64
	Matched    int64
	Status     string
	Metadata   map[string]any
}

// Recorder collects events in memory and periodically flushes them to the
// _events table in a batch insert. A nil Recorder drops every event, so
// callers never need to guard the disabled case.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	pool    *pgxpool.Pool
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
}

// NewRecorder creates a recorder that flushes on a timer or when full.
func NewRecorder(pool *pgxpool.Pool, maxSize int, flushIntervalMs int) *Recorder {
	if maxSize <= 0 {
		maxSize = 500
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 100
	}
	r := &Recorder{
		pool:    pool,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	r.ticker = time.NewTicker(time.Duration(flushIntervalMs) * time.Millisecond)
	go r.run()
	return r
}

func (r *Recorder) run() {
	for {
		select {
		case <-r.done:
			return
		case <-r.ticker.C:
			r.Flush()
		}
	}
}

// Record adds an event to the buffer. A full buffer triggers an async flush.
func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	shouldFlush := len(r.events) >= r.maxSize
	r.mu.Unlock()
	if shouldFlush {
		go r.Flush()
	}
}

// Flush writes all buffered events to the database in a single batch insert.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if len(r.events) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.events
	r.events = nil
	r.mu.Unlock()

	ctx := context.Background()
	cols := []string{"event_type", "query_id", "entity_id", "user_id", "duration_ms", "matched", "status", "metadata"}
	var placeholders []string
	var args []any
	for i, e := range batch {
		offset := i * len(cols)
		ph := make([]string, len(cols))
		for j := range cols {
			ph[j] = fmt.Sprintf("$%d", offset+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")

		var metaJSON any
		if e.Metadata != nil {
			b, _ := json.Marshal(e.Metadata)
			metaJSON = string(b)
		}
		args = append(args, e.EventType, e.QueryID, e.EntityID, e.UserID, e.DurationMs, e.Matched, e.Status, metaJSON)
	}

	sql := fmt.Sprintf("INSERT INTO _events (%s) VALUES %s", strings.Join(cols, ","), strings.Join(placeholders, ","))
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		log.Printf("ERROR: event recorder insert: %v", err)
	}
}

// Stop halts the background ticker and flushes remaining events.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	r.ticker.Stop()
	close(r.done)
	r.Flush()
}
