package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
	done   chan struct{}
	want   int
}

func (r *recordingAudit) Record(_ context.Context, event domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if len(r.events) == r.want {
		close(r.done)
	}
	return nil
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	audit := &recordingAudit{done: make(chan struct{}), want: 3}
	d := NewDispatcher(2, audit, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for _, kind := range []domain.SecurityEventKind{
		domain.EventLoginSuccess, domain.EventLogout, domain.EventRoleChanged,
	} {
		d.Emit(domain.SecurityEvent{Kind: kind, Username: "alice"})
	}

	select {
	case <-audit.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("events not delivered in time")
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	for _, ev := range audit.events {
		if ev.Timestamp.IsZero() {
			t.Fatalf("dispatcher should stamp events: %+v", ev)
		}
	}
}

func TestDispatcher_PerPrincipalOrdering(t *testing.T) {
	audit := &recordingAudit{done: make(chan struct{}), want: 10}
	d := NewDispatcher(4, audit, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 10; i++ {
		d.Emit(domain.SecurityEvent{
			Kind:     domain.EventLoginSuccess,
			Username: "alice",
			Details:  map[string]string{"seq": string(rune('0' + i))},
		})
	}

	select {
	case <-audit.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("events not delivered in time")
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	for i, ev := range audit.events {
		if ev.Details["seq"] != string(rune('0'+i)) {
			t.Fatalf("events for one principal must stay ordered, got %v at %d", ev.Details["seq"], i)
		}
	}
}
