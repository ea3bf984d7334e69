package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

const auditCollection = "security_events"

// MongoAuditRepository persists security events. Insert-only; the audit trail
// is never updated or deleted by the application.
type MongoAuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{coll: db.Collection(auditCollection)}
}

type mongoSecurityEvent struct {
	Kind      string            `bson:"kind"`
	Username  string            `bson:"username,omitempty"`
	SessionID string            `bson:"session_id,omitempty"`
	Timestamp int64             `bson:"timestamp"`
	Details   map[string]string `bson:"details,omitempty"`
}

func (r *MongoAuditRepository) Insert(ctx context.Context, event domain.SecurityEvent) error {
	doc := mongoSecurityEvent{
		Kind:      string(event.Kind),
		Username:  event.Username,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp.Unix(),
		Details:   event.Details,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
