package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/sony/gobreaker"
	"github.com/vcard-network/depositd/pkg/circuitbreaker"
	"github.com/vcard-network/depositd/pkg/ledger"
	"go.uber.org/ratelimit"
)

const (
	defaultRequestTimeout      = 15 * time.Second
	defaultRequestsPerSecond   = 10
	defaultConfirmPollInterval = 2 * time.Second

	// Error codes some RPC providers use instead of HTTP 429.
	codeTooManyRequests     = 429
	codeRateLimitedProvider = -32429
)

var (
	// ErrNullEndpoint ...
	ErrNullEndpoint = errors.New("rpc endpoint must not be null")
)

// Config holds the parameters of the JSON-RPC client.
type Config struct {
	Endpoint string
	// RequestTimeout bounds every single HTTP request.
	RequestTimeout time.Duration
	// RequestsPerSecond paces outgoing requests.
	RequestsPerSecond int
	Commitment        ledger.Commitment
	// ConfirmPollInterval is the wait between two status checks of a
	// submitted transaction.
	ConfirmPollInterval time.Duration
	Clock               clock.Clock
}

func (c *Config) setDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Commitment == "" {
		c.Commitment = ledger.CommitmentConfirmed
	}
	if c.ConfirmPollInterval <= 0 {
		c.ConfirmPollInterval = defaultConfirmPollInterval
	}
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}
}

type service struct {
	cfg     Config
	client  *rpc.Client
	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewService returns a JSON-RPC client for a Solana endpoint as a
// ledger.Service interface.
func NewService(cfg Config) (ledger.Service, error) {
	return newService(cfg)
}

func newService(cfg Config) (*service, error) {
	if len(strings.TrimSpace(cfg.Endpoint)) <= 0 {
		return nil, ErrNullEndpoint
	}
	cfg.setDefaults()

	rpcClient := jsonrpc.NewClientWithOpts(cfg.Endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
	})

	return &service{
		cfg:     cfg,
		client:  rpc.NewWithCustomRPCClient(rpcClient),
		limiter: ratelimit.New(cfg.RequestsPerSecond),
		cb:      circuitbreaker.NewCircuitBreaker("ledger rpc"),
	}, nil
}

func (s *service) commitment() rpc.CommitmentType {
	return rpc.CommitmentType(s.cfg.Commitment)
}

// call paces and runs the given request through the circuit breaker.
// Errors returned by a reachable node (rate limits included) are handed to
// the breaker as results so that they don't count as endpoint failures.
func (s *service) call(
	ctx context.Context, method string, do func(context.Context) error,
) error {
	s.limiter.Take()

	res, err := s.cb.Execute(func() (interface{}, error) {
		err := do(ctx)
		if err == nil {
			return nil, nil
		}
		if !isEndpointFailure(err) {
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s", ledger.ErrUnavailable, err)
		}
		return toLedgerError(method, err)
	}
	if res != nil {
		return toLedgerError(method, res.(error))
	}
	return nil
}

func isEndpointFailure(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code != http.StatusTooManyRequests
	}
	return true
}

// toLedgerError maps the errors of the JSON-RPC client onto
// *ledger.RPCError. Not found results and context errors are returned as
// they are.
func toLedgerError(method string, err error) error {
	if errors.Is(err, rpc.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return &ledger.RPCError{
			Method:     method,
			HTTPStatus: httpErr.Code,
			Message:    httpErr.Error(),
			RateLimit:  httpErr.Code == http.StatusTooManyRequests,
		}
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		return &ledger.RPCError{
			Method:  method,
			Code:    rpcErr.Code,
			Message: rpcErr.Message,
			RateLimit: rpcErr.Code == codeTooManyRequests ||
				rpcErr.Code == codeRateLimitedProvider ||
				strings.Contains(msg, "too many requests") ||
				strings.Contains(msg, "rate limit"),
		}
	}

	return &ledger.RPCError{Method: method, Message: err.Error()}
}
