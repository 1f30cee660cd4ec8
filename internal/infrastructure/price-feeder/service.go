package pricefeederinfra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/ports"
	pricefeeder "github.com/vcard-network/depositd/pkg/price-feeder"
)

type priceSourceService struct {
	feederSvc pricefeeder.PriceFeeder
	maxAge    time.Duration
	clock     clock.Clock

	lock       sync.RWMutex
	lastPrice  *pricefeeder.PriceFeed
	receivedAt time.Time

	done chan struct{}
}

// NewService returns a PriceSource keeping track of the latest SOL/USD tick
// streamed by the given feeder. A price older than maxAge is not served, a
// zero maxAge disables the check.
func NewService(
	feederSvc pricefeeder.PriceFeeder, maxAge time.Duration, clk clock.Clock,
) ports.PriceSource {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &priceSourceService{
		feederSvc: feederSvc,
		maxAge:    maxAge,
		clock:     clk,
		done:      make(chan struct{}),
	}
}

func (p *priceSourceService) Start() error {
	if err := p.feederSvc.SubscribeMarkets(
		[]pricefeeder.Market{pricefeeder.SolUsdMarket},
	); err != nil {
		return err
	}
	if err := p.feederSvc.Start(); err != nil {
		return err
	}

	go p.listen()
	return nil
}

func (p *priceSourceService) Stop() {
	p.feederSvc.Stop()
	<-p.done
}

func (p *priceSourceService) GetSolPrice(
	_ context.Context,
) (decimal.Decimal, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if p.lastPrice == nil {
		return decimal.Zero, ErrPriceUnavailable
	}
	if p.maxAge > 0 {
		if age := p.clock.Now().Sub(p.receivedAt); age > p.maxAge {
			return decimal.Zero, fmt.Errorf(
				"%w: last update %s ago", ErrPriceTooOld, age.Round(time.Second),
			)
		}
	}
	return p.lastPrice.Price.QuotePrice, nil
}

func (p *priceSourceService) listen() {
	defer close(p.done)

	for feed := range p.feederSvc.FeedChan() {
		if feed.Market.Ticker != pricefeeder.SolUsdMarket.Ticker {
			continue
		}
		p.updatePrice(feed)
		log.Debugf("SOL/USD price updated to %s", feed.Price.QuotePrice)
	}
}

func (p *priceSourceService) updatePrice(feed pricefeeder.PriceFeed) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.lastPrice = &feed
	p.receivedAt = p.clock.Now()
}

type staticPriceSource struct {
	price decimal.Decimal
}

// NewStaticService returns a PriceSource always serving the given price.
func NewStaticService(price decimal.Decimal) (ports.PriceSource, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidStaticPrice
	}
	return &staticPriceSource{price}, nil
}

func (s *staticPriceSource) Start() error { return nil }

func (s *staticPriceSource) Stop() {}

func (s *staticPriceSource) GetSolPrice(
	_ context.Context,
) (decimal.Decimal, error) {
	return s.price, nil
}
