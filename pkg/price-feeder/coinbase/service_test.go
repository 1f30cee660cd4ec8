package coinbase

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	pricefeeder "github.com/vcard-network/depositd/pkg/price-feeder"
)

var tickerMessages = []string{
	`{"type":"subscriptions","channels":[{"name":"ticker","product_ids":["SOL-USD"]}]}`,
	`{"type":"heartbeat","product_id":"SOL-USD","sequence":1}`,
	`{"type":"ticker","product_id":"ETH-USD","price":"2000.00","time":"2024-01-01T00:00:00.000000Z"}`,
	`{"type":"ticker","product_id":"SOL-USD","price":"100.50","time":"2024-01-01T00:00:01.000000Z"}`,
	`{"type":"ticker","product_id":"SOL-USD","price":"100.50","time":"2024-01-01T00:00:02.000000Z"}`,
	`{"type":"ticker","product_id":"SOL-USD","price":"not-a-price","time":"2024-01-01T00:00:03.000000Z"}`,
	`{"type":"ticker","product_id":"SOL-USD","price":"101.25","time":"2024-01-01T00:00:04.000000Z"}`,
}

func newTestServer(t *testing.T, subscribed chan []string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		msg := struct {
			Type       string   `json:"type"`
			ProductIDs []string `json:"product_ids"`
		}{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg.ProductIDs

		for _, m := range tickerMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Keep the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestService(t *testing.T) {
	subscribed := make(chan []string, 1)
	srv := newTestServer(t, subscribed)

	feederSvc := NewService("ws" + strings.TrimPrefix(srv.URL, "http"))
	err := feederSvc.SubscribeMarkets([]pricefeeder.Market{pricefeeder.SolUsdMarket})
	require.NoError(t, err)

	require.NoError(t, feederSvc.Start())
	require.ErrorIs(t, feederSvc.Start(), ErrAlreadyStarted)

	select {
	case tickers := <-subscribed:
		require.Equal(t, []string{"SOL-USD"}, tickers)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not received")
	}

	expectedPrices := []string{"100.5", "101.25"}
	for _, expected := range expectedPrices {
		select {
		case feed := <-feederSvc.FeedChan():
			require.Equal(t, pricefeeder.SolUsdMarket, feed.Market)
			require.True(
				t, decimal.RequireFromString(expected).Equal(feed.Price.QuotePrice),
			)
			require.True(t, feed.Price.BasePrice.IsPositive())
			require.False(t, feed.Time.IsZero())
		case <-time.After(5 * time.Second):
			t.Fatal("price feed not received")
		}
	}

	feederSvc.Stop()
	_, ok := <-feederSvc.FeedChan()
	require.False(t, ok)
	require.ErrorIs(t, feederSvc.Start(), ErrStopped)
}
