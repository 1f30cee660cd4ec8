package application

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/internal/core/ports"
	"github.com/vcard-network/depositd/pkg/lamports"
)

// WebhookInfo describes a webhook subscription.
type WebhookInfo struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

// PubSubService manages webhooks and notifies them about deposit events.
type PubSubService interface {
	AddWebhook(ctx context.Context, topic, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, topic string) ([]WebhookInfo, error)
	PublishDepositEvent(topic string, deposit domain.Deposit)
}

type pubsubService struct {
	pubsub ports.PubSub
}

// NewPubSubService returns a service publishing deposit events through the
// given pubsub. A nil pubsub disables notifications.
func NewPubSubService(pubsub ports.PubSub) PubSubService {
	return &pubsubService{pubsub}
}

func (s *pubsubService) AddWebhook(
	_ context.Context, topic, endpoint, secret string,
) (string, error) {
	if s.pubsub == nil {
		return "", ErrPubSubNotInitialized
	}
	if _, ok := knownTopics[topic]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownTopic, topic)
	}
	return s.pubsub.Subscribe(topic, endpoint, secret)
}

func (s *pubsubService) RemoveWebhook(_ context.Context, id string) error {
	if s.pubsub == nil {
		return ErrPubSubNotInitialized
	}
	return s.pubsub.Unsubscribe(ports.UnspecifiedTopic, id)
}

func (s *pubsubService) ListWebhooks(
	_ context.Context, topic string,
) ([]WebhookInfo, error) {
	if s.pubsub == nil {
		return nil, ErrPubSubNotInitialized
	}
	if topic != ports.UnspecifiedTopic {
		if _, ok := knownTopics[topic]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTopic, topic)
		}
	}

	subs := s.pubsub.ListSubscriptionsForTopic(topic)
	hooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		hooks = append(hooks, WebhookInfo{
			ID:        sub.Id(),
			Topic:     sub.Topic(),
			Endpoint:  sub.NotifyAt(),
			IsSecured: sub.IsSecured(),
		})
	}
	return hooks, nil
}

func (s *pubsubService) PublishDepositEvent(topic string, deposit domain.Deposit) {
	if s.pubsub == nil {
		return
	}

	message, _ := json.Marshal(depositEventPayload(topic, deposit))
	if err := s.pubsub.Publish(topic, string(message)); err != nil {
		log.WithError(err).WithField("deposit", deposit.ID).Warnf(
			"failed to notify %s event", topic,
		)
	}
}

func depositEventPayload(topic string, d domain.Deposit) map[string]interface{} {
	payload := map[string]interface{}{
		"event":             topic,
		"deposit_id":        d.ID,
		"address":           d.Address,
		"expected_lamports": d.ExpectedLamports,
		"expected_sol":      lamports.LamportsToSol(d.ExpectedLamports).String(),
		"status":            d.Status.String(),
		"sweep_status":      d.SweepStatus.String(),
		"created_at":        d.CreatedAt,
	}
	if d.PaymentVerified {
		payload["amount_received"] = d.AmountReceived
		payload["tx_signature"] = d.TxSignature
		payload["verified_at"] = d.VerifiedAt
	}
	if d.SweepSignature != "" {
		payload["sweep_signature"] = d.SweepSignature
	}
	if d.SweepError != "" {
		payload["sweep_error"] = d.SweepError
		payload["sweep_attempts"] = d.SweepAttempts
	}
	if d.ExpiresAt > 0 {
		payload["expires_at"] = d.ExpiresAt
	}
	return payload
}
