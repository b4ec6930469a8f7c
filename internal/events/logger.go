package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Sink is the persistence dependency of the audit logger. *Store
// satisfies it; tests inject failing stand-ins.
type Sink interface {
	Insert(ctx context.Context, id string, in Input) error
}

// defaultWriteTimeout bounds a single audit write so a slow store can
// never throttle the request path.
const defaultWriteTimeout = 2 * time.Second

// Logger is the non-blocking front of the security-event store. Its
// contract: logging never returns an error and never panics into the
// caller. Persistence failures are written to the process log and
// reported as an empty event ID.
type Logger struct {
	sink    Sink
	timeout time.Duration
}

// LoggerOption tunes logger construction.
type LoggerOption func(*Logger)

// WithWriteTimeout overrides the per-write deadline.
func WithWriteTimeout(d time.Duration) LoggerOption {
	return func(l *Logger) { l.timeout = d }
}

func NewLogger(sink Sink, opts ...LoggerOption) *Logger {
	l := &Logger{
		sink:    sink,
		timeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log persists an event synchronously, bounded by the write timeout.
// Returns the event ID, or "" if persistence failed. Never returns an
// error: audit failures must not be able to break the request path.
func (l *Logger) Log(in Input) string {
	id := uuid.New().String()
	if err := l.write(id, in); err != nil {
		log.Printf("events: dropping %s event: %v", in.Type, err)
		return ""
	}
	return id
}

// LogAsync dispatches the write to a background goroutine and returns
// the pre-generated event ID immediately. The goroutine is recovered
// and timeout-bounded; on any failure the event is dropped with a local
// log line and the returned ID simply never lands in the store.
func (l *Logger) LogAsync(in Input) string {
	id := uuid.New().String()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("events: async write panic: %v", r)
			}
		}()
		if err := l.write(id, in); err != nil {
			log.Printf("events: dropping %s event: %v", in.Type, err)
		}
	}()
	return id
}

func (l *Logger) write(id string, in Input) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.sink.Insert(ctx, id, in)
}
