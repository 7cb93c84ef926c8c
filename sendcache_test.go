package ipr

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSendCacheCheckAndMarkCached(t *testing.T) {
	cache := NewSendCache(5 * time.Minute)
	transferID := "transfer-1"
	result := &PaymentResult{
		TransferID:   transferID,
		SourceAmount: "10",
		Fulfillment:  "cf:0:AAAA",
	}

	// First call should return NotFound and mark in-flight
	status, cached, done := cache.CheckAndMark(transferID)
	if status != SendStatusNotFound {
		t.Errorf("Expected SendStatusNotFound, got %v", status)
	}
	if cached != nil {
		t.Error("Expected nil result for NotFound")
	}

	cache.Complete(transferID, result, done)

	// Second call should return Cached
	status, cached, _ = cache.CheckAndMark(transferID)
	if status != SendStatusCached {
		t.Errorf("Expected SendStatusCached, got %v", status)
	}
	if cached == nil || cached.Fulfillment != "cf:0:AAAA" {
		t.Error("Expected the cached result")
	}
}

func TestSendCacheCheckAndMarkInFlight(t *testing.T) {
	cache := NewSendCache(5 * time.Minute)
	transferID := "transfer-inflight"

	status1, _, done1 := cache.CheckAndMark(transferID)
	if status1 != SendStatusNotFound {
		t.Errorf("Expected SendStatusNotFound, got %v", status1)
	}

	status2, _, done2 := cache.CheckAndMark(transferID)
	if status2 != SendStatusInFlight {
		t.Errorf("Expected SendStatusInFlight, got %v", status2)
	}
	if done1 != done2 {
		t.Error("Expected the waiter to receive the owner's done channel")
	}
}

func TestSendCacheWaitForResult(t *testing.T) {
	cache := NewSendCache(5 * time.Minute)
	transferID := "transfer-wait"
	result := &PaymentResult{TransferID: transferID, Fulfillment: "cf:0:BBBB"}

	_, _, done := cache.CheckAndMark(transferID)

	var wg sync.WaitGroup
	wg.Add(1)
	var waited *PaymentResult
	go func() {
		defer wg.Done()
		waited, _ = cache.WaitForResult(context.Background(), transferID, done)
	}()

	cache.Complete(transferID, result, done)
	wg.Wait()

	if waited == nil || waited.Fulfillment != "cf:0:BBBB" {
		t.Error("Expected the waiter to observe the completed result")
	}
}

func TestSendCacheWaitForResultContextCancelled(t *testing.T) {
	cache := NewSendCache(5 * time.Minute)
	_, _, done := cache.CheckAndMark("transfer-ctx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.WaitForResult(ctx, "transfer-ctx", done); err == nil {
		t.Error("Expected context error")
	}
}

func TestSendCacheFailAllowsRetry(t *testing.T) {
	cache := NewSendCache(5 * time.Minute)
	transferID := "transfer-fail"

	_, _, done := cache.CheckAndMark(transferID)
	cache.Fail(transferID, done)

	// Failure is not cached; the next call gets a fresh in-flight slot.
	status, cached, _ := cache.CheckAndMark(transferID)
	if status != SendStatusNotFound {
		t.Errorf("Expected SendStatusNotFound after failure, got %v", status)
	}
	if cached != nil {
		t.Error("Expected no cached result after failure")
	}
}

func TestSendCacheExpiry(t *testing.T) {
	cache := NewSendCache(time.Millisecond)
	transferID := "transfer-ttl"

	_, _, done := cache.CheckAndMark(transferID)
	cache.Complete(transferID, &PaymentResult{TransferID: transferID}, done)

	time.Sleep(5 * time.Millisecond)

	status, _, _ := cache.CheckAndMark(transferID)
	if status != SendStatusNotFound {
		t.Errorf("Expected expired entry to be treated as NotFound, got %v", status)
	}
}
