// Package ledgertest provides a deterministic in-process ledger plugin for
// tests and demos. It implements the full ipr.Ledger contract: duplicate-id
// rejection, preimage verification on fulfillment, and delivery of transfer
// and fulfillment notifications.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	ipr "github.com/interledger-go/ipr"
)

type record struct {
	transfer    ipr.Transfer
	fulfillment ipr.Fulfillment
}

// Ledger is a single in-memory ledger shared by both ends of a payment: a
// transfer sent on it is redelivered as an incoming notification, and a
// fulfillment submitted on it is announced to fulfillment subscribers.
type Ledger struct {
	mu        sync.Mutex
	account   string
	connected bool
	records   map[string]*record
	incoming  chan ipr.Transfer
	subs      map[int]func(ipr.FulfillmentEvent)
	nextSub   int

	dataHandler func(ctx context.Context, packet []byte) ([]byte, error)
}

// Option configures the ledger.
type Option func(*Ledger)

// WithDataHandler installs the peer-side responder for SendData exchanges.
func WithDataHandler(fn func(ctx context.Context, packet []byte) ([]byte, error)) Option {
	return func(l *Ledger) {
		l.dataHandler = fn
	}
}

// New creates a ledger whose local account is account.
func New(account string, opts ...Option) *Ledger {
	l := &Ledger{
		account:  account,
		records:  make(map[string]*record),
		incoming: make(chan ipr.Transfer, 64),
		subs:     make(map[int]func(ipr.FulfillmentEvent)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *Ledger) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

func (l *Ledger) Account() string {
	return l.account
}

// SendTransfer stores the transfer and redelivers it as an incoming
// notification. A transfer id seen before is rejected with ErrDuplicateID
// regardless of payload, mirroring real ledger behavior.
func (l *Ledger) SendTransfer(ctx context.Context, transfer ipr.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[transfer.ID]; exists {
		return fmt.Errorf("transfer %s: %w", transfer.ID, ipr.ErrDuplicateID)
	}
	l.records[transfer.ID] = &record{transfer: transfer}

	delivered := transfer
	delivered.Direction = ipr.DirectionIncoming
	select {
	case l.incoming <- delivered:
	default:
		// Notification buffer full; the transfer still exists on the ledger.
	}
	return nil
}

func (l *Ledger) SendData(ctx context.Context, packet []byte) ([]byte, error) {
	if l.dataHandler == nil {
		return nil, fmt.Errorf("no peer responds to data packets on this ledger")
	}
	return l.dataHandler(ctx, packet)
}

// FulfillCondition verifies the preimage against the transfer's condition,
// marks the transfer executed and notifies fulfillment subscribers.
// Resubmitting the same fulfillment is idempotent.
func (l *Ledger) FulfillCondition(ctx context.Context, transferID string, fulfillment ipr.Fulfillment) error {
	l.mu.Lock()
	rec, exists := l.records[transferID]
	if !exists {
		l.mu.Unlock()
		return fmt.Errorf("transfer %s: %w", transferID, ipr.ErrTransferNotFound)
	}
	if rec.fulfillment != "" {
		l.mu.Unlock()
		if rec.fulfillment == fulfillment {
			return nil
		}
		return fmt.Errorf("transfer %s already fulfilled", transferID)
	}
	if !fulfillment.Matches(rec.transfer.ExecutionCondition) {
		l.mu.Unlock()
		return fmt.Errorf("fulfillment does not match condition of transfer %s", transferID)
	}
	rec.fulfillment = fulfillment
	event := ipr.FulfillmentEvent{
		TransferID:  transferID,
		Condition:   rec.transfer.ExecutionCondition,
		Fulfillment: fulfillment,
	}
	subs := make([]func(ipr.FulfillmentEvent), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

func (l *Ledger) GetFulfillment(ctx context.Context, transferID string) (ipr.Fulfillment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[transferID]
	if !exists {
		return "", fmt.Errorf("transfer %s: %w", transferID, ipr.ErrTransferNotFound)
	}
	if rec.fulfillment == "" {
		return "", fmt.Errorf("transfer %s: %w", transferID, ipr.ErrMissingFulfillment)
	}
	return rec.fulfillment, nil
}

func (l *Ledger) Transfers() <-chan ipr.Transfer {
	return l.incoming
}

func (l *Ledger) SubscribeFulfillments(fn func(ipr.FulfillmentEvent)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// SubscriberCount reports registered fulfillment subscribers, for listener
// hygiene assertions in tests.
func (l *Ledger) SubscriberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Seed pre-populates a transfer record, optionally already fulfilled, for
// duplicate-submission scenarios.
func (l *Ledger) Seed(transfer ipr.Transfer, fulfillment ipr.Fulfillment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[transfer.ID] = &record{transfer: transfer, fulfillment: fulfillment}
}
