package pubsub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/vcard-network/depositd/internal/core/ports"
	"github.com/vcard-network/depositd/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxParallelRequests   = 10

	// TopicHeader carries the topic of the published message.
	TopicHeader = "X-Depositd-Topic"
)

type service struct {
	store      *store
	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a webhook based pubsub service whose subscriptions are
// persisted in a badger db at the given directory, or in memory if the
// directory is empty.
func NewService(
	dbDir string, logger badger.Logger, requestTimeout time.Duration,
) (ports.PubSub, error) {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	st, err := newStore(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening pubsub db: %w", err)
	}

	return &service{
		store:      st,
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhook"),
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	if err := ws.store.add(sub); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (ws *service) Unsubscribe(_, id string) error {
	return ws.store.remove(id)
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

func (ws *service) Publish(topic string, message string) error {
	return ws.publishForTopic(topic, message)
}

func (ws *service) Close() error {
	return ws.store.close()
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	subs, err := ws.store.listForTopic(topic)
	if err != nil {
		log.WithError(err).Warnf("failed to list subscriptions for %s", topic)
		return nil
	}
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subsForAnyTopic, err := ws.store.listForTopic(ports.AnyTopic)
		if err != nil {
			log.WithError(err).Warn("failed to list subscriptions for any topic")
		}
		subs = append(subs, subsForAnyTopic...)
	}
	return subs
}

func (ws *service) publishForTopic(topic, message string) error {
	subs := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	eg.SetLimit(maxParallelRequests)
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return ws.doRequest(topic, sub, message) })
	}
	return eg.Wait()
}

func (ws *service) doRequest(topic string, sub Subscription, payload string) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
			TopicHeader:    topic,
		}
		if sub.IsSecured() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"iat":   time.Now().Unix(),
				"topic": topic,
				"sub":   sub.ID,
			})
			tokenString, err := token.SignedString([]byte(sub.Secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(
			context.Background(), sub.Endpoint, payload, headers,
		)
		if err != nil {
			return nil, err
		}
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return nil, fmt.Errorf(
				"webhook %s replied with status %d: %s", sub.ID, status, resp,
			)
		}
		return nil, nil
	})

	return err
}
