package events

import (
	"context"
	"encoding/json"
	"fmt"

	"hako-backend/internal/clients"
	"hako-backend/internal/models"
	"hako-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Publisher records audit events and fans them out over NATS.
// Persistence is mandatory; the NATS hop is best effort and a publish
// failure never fails the originating operation.
type Publisher struct {
	repo      repository.EventRepository
	nats      *clients.NATSClient
	networkID uint32
	logger    *logrus.Logger
}

func NewPublisher(repo repository.EventRepository, nats *clients.NATSClient, networkID uint32, logger *logrus.Logger) *Publisher {
	return &Publisher{
		repo:      repo,
		nats:      nats,
		networkID: networkID,
		logger:    logger,
	}
}

// Emit persists an audit event and publishes it on the event stream.
func (p *Publisher) Emit(ctx context.Context, eventType, subject string, topics []string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	event := &models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Subject: subject,
		Topics:  pq.StringArray(topics),
		Payload: string(data),
	}
	if err := p.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to persist %s event: %w", eventType, err)
	}

	if p.nats != nil {
		if err := p.nats.Publish(p.networkID, eventType, data); err != nil {
			p.logger.WithError(err).WithField("event_type", eventType).Warn("event publish failed, record persisted")
		}
	}

	return nil
}
