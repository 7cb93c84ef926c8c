package ipr

import (
	"context"
	"sync"
	"time"
)

// SendCache provides in-process idempotency for send operations by caching
// successful payment results and tracking in-flight sends keyed by transfer
// id. Concurrent identical sends converge on a single ledger submission, and
// retries inside the TTL window reuse the first result instead of hitting the
// ledger's duplicate-id rejection.
type SendCache struct {
	mu       sync.Mutex
	results  map[string]*PaymentResult
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewSendCache creates a send cache with the specified result TTL.
func NewSendCache(ttl time.Duration) *SendCache {
	return &SendCache{
		results:  make(map[string]*PaymentResult),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// SendStatus represents the result of checking the cache.
type SendStatus int

const (
	// SendStatusNotFound means no cached result and no in-flight send.
	SendStatusNotFound SendStatus = iota
	// SendStatusCached means a cached result was found.
	SendStatusCached
	// SendStatusInFlight means another call is currently sending this payment.
	SendStatusInFlight
)

// CheckAndMark atomically checks the cache and marks the transfer id as
// in-flight if needed. Returns:
//   - SendStatusCached + result if a cached result exists
//   - SendStatusInFlight + wait channel if another call is sending
//   - SendStatusNotFound + done channel if this call should proceed
//     (now marked in-flight)
func (c *SendCache) CheckAndMark(transferID string) (SendStatus, *PaymentResult, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[transferID]; exists {
		if time.Now().Before(expiry) {
			if result, ok := c.results[transferID]; ok {
				return SendStatusCached, result, nil
			}
		}
		// Expired - clean it up
		delete(c.results, transferID)
		delete(c.expiry, transferID)
	}

	if done, exists := c.inFlight[transferID]; exists {
		return SendStatusInFlight, nil, done
	}

	done := make(chan struct{})
	c.inFlight[transferID] = done
	return SendStatusNotFound, nil, done
}

// WaitForResult waits for an in-flight send to complete, respecting context
// cancellation. Returns the cached result if available, or nil if the
// in-flight send failed.
func (c *SendCache) WaitForResult(ctx context.Context, transferID string, done chan struct{}) (*PaymentResult, error) {
	select {
	case <-done:
		return c.Get(transferID), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get retrieves a cached payment result if it exists and hasn't expired.
func (c *SendCache) Get(transferID string) *PaymentResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, exists := c.expiry[transferID]
	if !exists {
		return nil
	}
	if time.Now().After(expiry) {
		delete(c.results, transferID)
		delete(c.expiry, transferID)
		return nil
	}
	return c.results[transferID]
}

// Complete caches the result of a finished send and signals any waiters.
func (c *SendCache) Complete(transferID string, result *PaymentResult, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[transferID] = result
	c.expiry[transferID] = time.Now().Add(c.ttl)
	delete(c.inFlight, transferID)
	close(done)

	c.cleanupExpiredLocked()
}

// Fail removes the in-flight marker without caching a result, allowing the
// send to be retried.
func (c *SendCache) Fail(transferID string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, transferID)
	close(done)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (c *SendCache) cleanupExpiredLocked() {
	now := time.Now()
	for transferID, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, transferID)
			delete(c.expiry, transferID)
		}
	}
}
