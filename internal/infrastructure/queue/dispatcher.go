package queue

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes security events to a fixed set of workers using
// consistent hashing on the username, guaranteeing per-principal event
// ordering in the audit trail.
type Dispatcher struct {
	workers []chan domain.SecurityEvent
	service ports.AuditService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.AuditService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.SecurityEvent, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.SecurityEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Emit sends an event to the worker responsible for its principal. Events are
// dropped with a warning when the worker's buffer is full; the audit trail is
// best-effort and must never stall a request.
func (d *Dispatcher) Emit(event domain.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case d.workers[d.shardIndex(event.Username)] <- event:
	default:
		d.log.Warn().
			Str("kind", string(event.Kind)).
			Str("username", event.Username).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.SecurityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := d.service.Record(ctx, event); err != nil {
				d.log.Error().Err(err).
					Str("kind", string(event.Kind)).
					Int("worker_id", id).
					Msg("security event processing failed")
			}
		}
	}
}
