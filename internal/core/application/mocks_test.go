package application

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/pkg/depositwallet"
	"github.com/vcard-network/depositd/pkg/ledger"
)

// **** Ledger ****

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockLedger) GetSignaturesForAddress(
	ctx context.Context, address string, limit int,
) ([]ledger.SignatureInfo, error) {
	args := m.Called(ctx, address, limit)

	var res []ledger.SignatureInfo
	if a := args.Get(0); a != nil {
		res = a.([]ledger.SignatureInfo)
	}
	return res, args.Error(1)
}

func (m *mockLedger) GetParsedTransaction(
	ctx context.Context, signature string,
) (*ledger.ParsedTransaction, error) {
	args := m.Called(ctx, signature)

	var res *ledger.ParsedTransaction
	if a := args.Get(0); a != nil {
		res = a.(*ledger.ParsedTransaction)
	}
	return res, args.Error(1)
}

func (m *mockLedger) GetLatestBlockhash(ctx context.Context) (*ledger.Blockhash, error) {
	args := m.Called(ctx)

	var res *ledger.Blockhash
	if a := args.Get(0); a != nil {
		res = a.(*ledger.Blockhash)
	}
	return res, args.Error(1)
}

func (m *mockLedger) GetBlockHeight(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockLedger) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	args := m.Called(ctx, rawTx)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockLedger) ConfirmTransaction(
	ctx context.Context, signature string, blockhash ledger.Blockhash,
) (interface{}, error) {
	args := m.Called(ctx, signature, blockhash)
	return args.Get(0), args.Error(1)
}

// **** PaymentVerifier ****

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyPayment(
	ctx context.Context, address string, expectedLamports uint64,
) PaymentVerification {
	args := m.Called(ctx, address, expectedLamports)
	return args.Get(0).(PaymentVerification)
}

func (m *mockVerifier) VerifyPaymentWithBackoff(
	ctx context.Context, address string, expectedLamports uint64,
) (PaymentVerification, error) {
	args := m.Called(ctx, address, expectedLamports)

	var res PaymentVerification
	if a := args.Get(0); a != nil {
		res = a.(PaymentVerification)
	}
	return res, args.Error(1)
}

// **** FundSweeper ****

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Sweep(
	ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
) SweepResult {
	args := m.Called(ctx, key, masterAddress)
	return args.Get(0).(SweepResult)
}

// SweepNotify reports the signature of a successful result as submitted.
func (m *mockSweeper) SweepNotify(
	ctx context.Context, key depositwallet.EncodedKey, masterAddress string,
	onSubmit func(signature string),
) SweepResult {
	args := m.Called(ctx, key, masterAddress)
	res := args.Get(0).(SweepResult)
	if onSubmit != nil {
		res.Signature.WhenSome(onSubmit)
	}
	return res
}

func (m *mockSweeper) SweepFundsToMaster(
	ctx context.Context, encodedPrivateKey, masterAddress string,
) SweepResult {
	args := m.Called(ctx, encodedPrivateKey, masterAddress)
	return args.Get(0).(SweepResult)
}

// **** PubSubService ****

type publishedEvent struct {
	topic   string
	deposit domain.Deposit
}

type recordingPubSub struct {
	lock   sync.Mutex
	events []publishedEvent
}

func (r *recordingPubSub) AddWebhook(
	context.Context, string, string, string,
) (string, error) {
	return "", nil
}

func (r *recordingPubSub) RemoveWebhook(context.Context, string) error {
	return nil
}

func (r *recordingPubSub) ListWebhooks(
	context.Context, string,
) ([]WebhookInfo, error) {
	return nil, nil
}

func (r *recordingPubSub) PublishDepositEvent(topic string, deposit domain.Deposit) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, publishedEvent{topic, deposit})
}

func (r *recordingPubSub) topics() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	topics := make([]string, 0, len(r.events))
	for _, e := range r.events {
		topics = append(topics, e.topic)
	}
	return topics
}

// **** PriceSource ****

type fixedPriceSource struct {
	price decimal.Decimal
	err   error
}

func (f fixedPriceSource) Start() error { return nil }

func (f fixedPriceSource) Stop() {}

func (f fixedPriceSource) GetSolPrice(context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}
