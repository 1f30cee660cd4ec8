package pricefeeder

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var (
	WebSocketCloseErrors = []int{
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseProtocolError,
		websocket.CloseUnsupportedData,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
		websocket.CloseInvalidFramePayloadData,
		websocket.ClosePolicyViolation,
		websocket.CloseMessageTooBig,
		websocket.CloseMandatoryExtension,
		websocket.CloseInternalServerErr,
		websocket.CloseServiceRestart,
		websocket.CloseTryAgainLater,
		websocket.CloseTLSHandshake,
	}

	// SolUsdMarket is the market used to convert fiat amounts to lamports.
	SolUsdMarket = Market{
		BaseAsset:  "SOL",
		QuoteAsset: "USD",
		Ticker:     "SOL-USD",
	}
)

// PriceFeeder streams the prices of the subscribed markets.
type PriceFeeder interface {
	SubscribeMarkets([]Market) error

	// Start connects to the price source and starts streaming feeds. It does
	// not block.
	Start() error
	Stop()

	FeedChan() chan PriceFeed
}

type PriceFeed struct {
	Market Market
	Price  Price
	Time   time.Time
}

type Market struct {
	BaseAsset  string
	QuoteAsset string
	Ticker     string
}

// Price holds the amount of quote asset for 1 unit of base asset
// (QuotePrice) and its inverse (BasePrice).
type Price struct {
	BasePrice  decimal.Decimal
	QuotePrice decimal.Decimal
}
