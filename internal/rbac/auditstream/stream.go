// Package auditstream publishes committed audit entries to Kafka for the
// downstream compliance pipeline. Publishing happens after the database
// commit and is best-effort: the durable trail lives in the audit store, the
// stream is a mirror for consumers that want to tail changes.
package auditstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"accessd/internal/rbac/models"
)

const defaultTopic = "rbac.role-audit"

// Publisher streams audit entries to a Kafka topic keyed by role ID, so all
// entries of one role land in one partition in commit order.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and returns a publisher. An empty topic selects
// the default.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if topic == "" {
		topic = defaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit stream: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

type streamPayload struct {
	ID           string    `json:"id"`
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publish produces one entry synchronously. Callers treat an error as
// degraded observability, not as a failed mutation.
func (p *Publisher) Publish(ctx context.Context, entry models.AuditEntry) error {
	payload, err := json.Marshal(streamPayload{
		ID:           entry.ID.String(),
		RoleID:       entry.RoleID.String(),
		PermissionID: string(entry.PermissionID),
		Action:       string(entry.Action),
		Actor:        entry.Actor,
		Timestamp:    entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.RoleID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
