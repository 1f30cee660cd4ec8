package pricefeederinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	pricefeederinfra "github.com/vcard-network/depositd/internal/infrastructure/price-feeder"
	pricefeeder "github.com/vcard-network/depositd/pkg/price-feeder"
)

type mockFeeder struct {
	markets []pricefeeder.Market
	feedCh  chan pricefeeder.PriceFeed
}

func newMockFeeder() *mockFeeder {
	return &mockFeeder{feedCh: make(chan pricefeeder.PriceFeed)}
}

func (m *mockFeeder) SubscribeMarkets(markets []pricefeeder.Market) error {
	m.markets = append(m.markets, markets...)
	return nil
}

func (m *mockFeeder) Start() error { return nil }

func (m *mockFeeder) Stop() { close(m.feedCh) }

func (m *mockFeeder) FeedChan() chan pricefeeder.PriceFeed { return m.feedCh }

func TestPriceSourceService(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	testClock := clock.NewTestClock(now)
	feeder := newMockFeeder()

	svc := pricefeederinfra.NewService(feeder, time.Minute, testClock)
	require.NoError(t, svc.Start())
	require.Equal(t, []pricefeeder.Market{pricefeeder.SolUsdMarket}, feeder.markets)

	_, err := svc.GetSolPrice(ctx)
	require.ErrorIs(t, err, pricefeederinfra.ErrPriceUnavailable)

	feeder.feedCh <- pricefeeder.PriceFeed{
		Market: pricefeeder.Market{Ticker: "ETH-USD"},
		Price:  pricefeeder.Price{QuotePrice: decimal.NewFromInt(2000)},
	}
	feeder.feedCh <- pricefeeder.PriceFeed{
		Market: pricefeeder.SolUsdMarket,
		Price:  pricefeeder.Price{QuotePrice: decimal.RequireFromString("150.25")},
	}
	// Unbuffered channel: the second send returns once the first feed was
	// consumed, this one makes sure the second is handled too.
	feeder.feedCh <- pricefeeder.PriceFeed{
		Market: pricefeeder.SolUsdMarket,
		Price:  pricefeeder.Price{QuotePrice: decimal.RequireFromString("150.5")},
	}

	require.Eventually(t, func() bool {
		price, err := svc.GetSolPrice(ctx)
		return err == nil && price.Equal(decimal.RequireFromString("150.5"))
	}, time.Second, 10*time.Millisecond)

	testClock.SetTime(now.Add(2 * time.Minute))
	_, err = svc.GetSolPrice(ctx)
	require.ErrorIs(t, err, pricefeederinfra.ErrPriceTooOld)

	svc.Stop()
}

func TestStaticPriceSource(t *testing.T) {
	_, err := pricefeederinfra.NewStaticService(decimal.Zero)
	require.ErrorIs(t, err, pricefeederinfra.ErrInvalidStaticPrice)

	svc, err := pricefeederinfra.NewStaticService(decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	price, err := svc.GetSolPrice(context.Background())
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(100)))
	svc.Stop()
}
