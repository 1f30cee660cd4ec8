package application

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/internal/core/ports"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

type mockPubSub struct {
	mock.Mock
}

func (m *mockPubSub) Subscribe(topic, endpoint, secret string) (string, error) {
	args := m.Called(topic, endpoint, secret)
	return args.String(0), args.Error(1)
}

func (m *mockPubSub) Unsubscribe(topic, id string) error {
	return m.Called(topic, id).Error(0)
}

func (m *mockPubSub) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return m.Called(topic).Get(0).([]ports.Subscription)
}

func (m *mockPubSub) Publish(topic string, message string) error {
	return m.Called(topic, message).Error(0)
}

func (m *mockPubSub) Close() error {
	return m.Called().Error(0)
}

type testSubscription struct {
	id, topic, endpoint string
	secured             bool
}

func (s testSubscription) Topic() string    { return s.topic }
func (s testSubscription) Id() string       { return s.id }
func (s testSubscription) IsSecured() bool  { return s.secured }
func (s testSubscription) NotifyAt() string { return s.endpoint }

func TestPubSubService(t *testing.T) {
	t.Parallel()

	t.Run("webhooks", func(t *testing.T) {
		ps := &mockPubSub{}
		ps.On("Subscribe", TopicDepositSwept, "http://hooks.local/swept", "secret").
			Return("hook-id", nil)
		ps.On("Unsubscribe", ports.UnspecifiedTopic, "hook-id").Return(nil)
		ps.On("ListSubscriptionsForTopic", ports.UnspecifiedTopic).
			Return([]ports.Subscription{
				testSubscription{"hook-id", TopicDepositSwept, "http://hooks.local/swept", true},
			})
		svc := NewPubSubService(ps)

		id, err := svc.AddWebhook(ctx(), TopicDepositSwept, "http://hooks.local/swept", "secret")
		require.NoError(t, err)
		require.Equal(t, "hook-id", id)

		_, err = svc.AddWebhook(ctx(), "TRADE_SETTLED", "http://hooks.local", "")
		require.ErrorIs(t, err, ErrUnknownTopic)

		hooks, err := svc.ListWebhooks(ctx(), "")
		require.NoError(t, err)
		require.Equal(t, []WebhookInfo{{
			ID:        "hook-id",
			Topic:     TopicDepositSwept,
			Endpoint:  "http://hooks.local/swept",
			IsSecured: true,
		}}, hooks)

		_, err = svc.ListWebhooks(ctx(), "nope")
		require.ErrorIs(t, err, ErrUnknownTopic)

		require.NoError(t, svc.RemoveWebhook(ctx(), "hook-id"))
	})

	t.Run("without pubsub", func(t *testing.T) {
		svc := NewPubSubService(nil)

		_, err := svc.AddWebhook(ctx(), TopicAny, "http://hooks.local", "")
		require.ErrorIs(t, err, ErrPubSubNotInitialized)
		_, err = svc.ListWebhooks(ctx(), "")
		require.ErrorIs(t, err, ErrPubSubNotInitialized)
		require.ErrorIs(t, svc.RemoveWebhook(ctx(), "id"), ErrPubSubNotInitialized)

		svc.PublishDepositEvent(TopicDepositSwept, domain.Deposit{})
	})

	t.Run("publish deposit event", func(t *testing.T) {
		deposit := domain.Deposit{
			ID:               "deposit-id",
			Address:          testDepositAddress,
			ExpectedLamports: 1_500_000_000,
			SigningKey:       depositwallet.EncodedKey{Encoding: depositwallet.KeyEncodingBase64, Data: "secret"},
			Status:           domain.DepositStatusVerified,
			PaymentVerified:  true,
			TxSignature:      "paysig",
			AmountReceived:   1_500_000_000,
			SweepStatus:      domain.SweepStatusFailed,
			SweepError:       "No funds to sweep",
			SweepAttempts:    1,
			CreatedAt:        testNow.Unix(),
			VerifiedAt:       testNow.Unix(),
		}

		var message string
		ps := &mockPubSub{}
		ps.On("Publish", TopicSweepFailed, mock.Anything).
			Run(func(args mock.Arguments) { message = args.String(1) }).
			Return(errors.New("endpoint unreachable"))

		NewPubSubService(ps).PublishDepositEvent(TopicSweepFailed, deposit)

		payload := make(map[string]interface{})
		require.NoError(t, json.Unmarshal([]byte(message), &payload))
		require.Equal(t, TopicSweepFailed, payload["event"])
		require.Equal(t, "deposit-id", payload["deposit_id"])
		require.Equal(t, "1.5", payload["expected_sol"])
		require.Equal(t, "VERIFIED", payload["status"])
		require.Equal(t, "FAILED", payload["sweep_status"])
		require.Equal(t, "paysig", payload["tx_signature"])
		require.Equal(t, "No funds to sweep", payload["sweep_error"])
		require.NotContains(t, payload, "sweep_signature")
		require.NotContains(t, payload, "expires_at")
		require.NotContains(t, message, "secret")
	})
}
