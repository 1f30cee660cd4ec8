package coinbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	pricefeeder "github.com/vcard-network/depositd/pkg/price-feeder"
)

const (
	DefaultURL              = "wss://ws-feed.exchange.coinbase.com"
	maxReconnectionAttempts = 3
	reconnectionDelay       = 500 * time.Millisecond
	feedChanSize            = 20
)

var (
	// ErrAlreadyStarted ...
	ErrAlreadyStarted = errors.New("price feeder already started")
	// ErrStopped is returned when starting a feeder that was stopped.
	ErrStopped = errors.New("price feeder is stopped")
)

type service struct {
	url string

	connLock *sync.Mutex
	conn     *websocket.Conn
	started  bool
	stopped  bool

	marketLock      *sync.RWMutex
	marketsByTicker map[string]pricefeeder.Market

	feedLock         *sync.RWMutex
	lastFeedByTicker map[string]pricefeeder.PriceFeed

	feedCh chan pricefeeder.PriceFeed
}

// NewService returns a feeder for the Coinbase exchange ticker channel
// reachable at the given websocket url. An empty url defaults to the
// production feed.
func NewService(url string) pricefeeder.PriceFeeder {
	if url == "" {
		url = DefaultURL
	}
	return &service{
		url:              url,
		connLock:         &sync.Mutex{},
		marketLock:       &sync.RWMutex{},
		marketsByTicker:  make(map[string]pricefeeder.Market),
		feedLock:         &sync.RWMutex{},
		lastFeedByTicker: make(map[string]pricefeeder.PriceFeed),
		feedCh:           make(chan pricefeeder.PriceFeed, feedChanSize),
	}
}

func (s *service) Start() error {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	conn, err := s.connect()
	if err != nil {
		return err
	}
	s.conn = conn
	s.started = true

	go s.listen(conn)
	return nil
}

func (s *service) Stop() {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.conn != nil {
		s.conn.Close()
	}
	close(s.feedCh)
}

func (s *service) FeedChan() chan pricefeeder.PriceFeed {
	return s.feedCh
}

func (s *service) SubscribeMarkets(markets []pricefeeder.Market) error {
	tickers := make([]string, 0, len(markets))
	marketsToAdd := make([]pricefeeder.Market, 0, len(markets))
	for _, mkt := range markets {
		if _, ok := s.getMarketByTicker(mkt.Ticker); !ok {
			tickers = append(tickers, mkt.Ticker)
			marketsToAdd = append(marketsToAdd, mkt)
		}
	}
	if len(tickers) <= 0 {
		return nil
	}

	s.addMarkets(marketsToAdd)

	s.connLock.Lock()
	defer s.connLock.Unlock()
	// Markets are subscribed at connection time if not connected yet.
	if s.conn == nil {
		return nil
	}
	return subscribe(s.conn, tickers)
}

func (s *service) listen(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.isStopped() {
				return
			}
			if websocket.IsUnexpectedCloseError(
				err, pricefeeder.WebSocketCloseErrors...,
			) {
				log.WithError(err).Warn("coinbase: unexpected connection close")
			}
			s.reconnect()
			return
		}

		priceFeed := s.parseFeed(message)
		if priceFeed == nil {
			continue
		}

		lastFeed, ok := s.getPriceFeed(priceFeed.Market.Ticker)
		// Prevent updating a feed if it hasn't changed.
		if ok && priceFeed.Price.QuotePrice.Equal(lastFeed.Price.QuotePrice) {
			continue
		}

		s.updatePriceFeed(priceFeed.Market.Ticker, *priceFeed)
		s.publish(*priceFeed)
	}
}

func (s *service) publish(feed pricefeeder.PriceFeed) {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.stopped {
		return
	}
	select {
	case s.feedCh <- feed:
	default:
		log.Debugf("coinbase: feed channel full, dropping %s tick", feed.Market.Ticker)
	}
}

func (s *service) reconnect() {
	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < maxReconnectionAttempts; attempt++ {
		if s.isStopped() {
			return
		}
		conn, err = s.connect()
		if err == nil {
			break
		}
		log.WithError(err).Debugf("coinbase: reconnection attempt %d failed", attempt)
		time.Sleep(reconnectionDelay)
	}
	if err != nil {
		log.WithError(err).Error("coinbase: failed to reconnect to server")
		return
	}

	s.connLock.Lock()
	if s.stopped {
		s.connLock.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.connLock.Unlock()

	go s.listen(conn)
	log.Debug("coinbase: connection with server restored")
}

func (s *service) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return nil, err
	}

	tickers := s.getMarketTickers()
	if len(tickers) > 0 {
		if err := subscribe(conn, tickers); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (s *service) isStopped() bool {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	return s.stopped
}

func subscribe(conn *websocket.Conn, mktTickers []string) error {
	msg := map[string]interface{}{
		"type":        "subscribe",
		"product_ids": mktTickers,
		"channels": []string{
			"heartbeat", "ticker",
		},
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("cannot subscribe to given markets: %s", err)
	}
	return nil
}

type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

func (s *service) parseFeed(buf []byte) *pricefeeder.PriceFeed {
	msg := tickerMessage{}
	if err := json.Unmarshal(buf, &msg); err != nil {
		return nil
	}
	if msg.Type != "ticker" || msg.ProductID == "" || msg.Price == "" {
		return nil
	}

	quotePrice, err := decimal.NewFromString(msg.Price)
	if err != nil || !quotePrice.IsPositive() {
		return nil
	}
	mkt, ok := s.getMarketByTicker(msg.ProductID)
	if !ok {
		return nil
	}

	feedTime, err := time.Parse(time.RFC3339Nano, msg.Time)
	if err != nil {
		feedTime = time.Now()
	}

	return &pricefeeder.PriceFeed{
		Market: mkt,
		Price: pricefeeder.Price{
			BasePrice:  decimal.NewFromInt(1).Div(quotePrice).Round(9),
			QuotePrice: quotePrice,
		},
		Time: feedTime,
	}
}

func (s *service) addMarkets(markets []pricefeeder.Market) {
	s.marketLock.Lock()
	defer s.marketLock.Unlock()

	for _, mkt := range markets {
		s.marketsByTicker[mkt.Ticker] = mkt
	}
}

func (s *service) getMarketByTicker(ticker string) (pricefeeder.Market, bool) {
	s.marketLock.RLock()
	defer s.marketLock.RUnlock()

	mkt, ok := s.marketsByTicker[ticker]
	return mkt, ok
}

func (s *service) getMarketTickers() []string {
	s.marketLock.RLock()
	defer s.marketLock.RUnlock()

	tickers := make([]string, 0, len(s.marketsByTicker))
	for ticker := range s.marketsByTicker {
		tickers = append(tickers, ticker)
	}
	return tickers
}

func (s *service) updatePriceFeed(ticker string, feed pricefeeder.PriceFeed) {
	s.feedLock.Lock()
	defer s.feedLock.Unlock()

	s.lastFeedByTicker[ticker] = feed
}

func (s *service) getPriceFeed(ticker string) (pricefeeder.PriceFeed, bool) {
	s.feedLock.RLock()
	defer s.feedLock.RUnlock()

	feed, ok := s.lastFeedByTicker[ticker]
	return feed, ok
}
