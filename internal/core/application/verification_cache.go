package application

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

type verificationKey struct {
	address  string
	expected uint64
}

type cachedVerification struct {
	result   PaymentVerification
	storedAt time.Time
}

// verificationCache holds the successful verification results for a ttl.
// Expired entries are dropped lazily on access and on insertion.
type verificationCache struct {
	lock    sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[verificationKey]cachedVerification
}

func newVerificationCache(ttl time.Duration, clk clock.Clock) *verificationCache {
	return &verificationCache{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[verificationKey]cachedVerification),
	}
}

func (c *verificationCache) get(
	address string, expected uint64,
) (PaymentVerification, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	key := verificationKey{address, expected}
	entry, ok := c.entries[key]
	if !ok {
		return PaymentVerification{}, false
	}
	if c.clock.Now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return PaymentVerification{}, false
	}
	return entry.result, true
}

func (c *verificationCache) put(
	address string, expected uint64, result PaymentVerification,
) {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.clock.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
	c.entries[verificationKey{address, expected}] = cachedVerification{
		result:   result,
		storedAt: now,
	}
}
