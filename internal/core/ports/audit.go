package ports

import (
	"context"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// AuditRepository persists security events (append-only).
type AuditRepository interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
}

// AuditService records a single security event: structured log, metric bump,
// and persistence.
type AuditService interface {
	Record(ctx context.Context, event domain.SecurityEvent) error
}

// AuditSink is the fire-and-forget surface handed to request-path code; the
// queue dispatcher implements it and fans events out to workers.
type AuditSink interface {
	Emit(event domain.SecurityEvent)
}
