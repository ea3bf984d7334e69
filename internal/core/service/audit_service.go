package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
	"github.com/pulsechat/chat-api/internal/pkg/metrics"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that logs, counts, and persists
// each security event.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record processes one security event end-to-end.
func (s *auditService) Record(ctx context.Context, event domain.SecurityEvent) error {
	entry := s.log.Info()
	if event.Kind == domain.EventRememberMeReuse || event.Kind == domain.EventLoginFailure {
		entry = s.log.Warn()
	}
	entry.
		Str("kind", string(event.Kind)).
		Str("username", event.Username).
		Str("session_id", event.SessionID).
		Fields(map[string]any{"details": event.Details}).
		Msg("security event")

	metrics.SecurityEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	if err := s.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("persist security event: %w", err)
	}
	return nil
}
