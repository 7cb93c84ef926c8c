package ipr

import (
	"context"
	"sync"
)

// mockLedger is a scriptable Ledger for engine tests. Zero value behaviors:
// sends and fulfillments succeed and are recorded; lookups miss.
type mockLedger struct {
	mu sync.Mutex

	account   string
	transfers chan Transfer

	sendErr      error
	fulfillErr   error
	lookupResult Fulfillment
	lookupErr    error
	onSend       func(Transfer)

	sentTransfers []Transfer
	fulfillments  map[string]Fulfillment

	subs    map[int]func(FulfillmentEvent)
	nextSub int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		account:      "example.ledger.sender",
		transfers:    make(chan Transfer, 16),
		fulfillments: make(map[string]Fulfillment),
		subs:         make(map[int]func(FulfillmentEvent)),
	}
}

func (m *mockLedger) Connect(ctx context.Context) error    { return nil }
func (m *mockLedger) Disconnect(ctx context.Context) error { return nil }
func (m *mockLedger) Account() string                      { return m.account }

func (m *mockLedger) SendTransfer(ctx context.Context, transfer Transfer) error {
	m.mu.Lock()
	err := m.sendErr
	onSend := m.onSend
	if err == nil {
		m.sentTransfers = append(m.sentTransfers, transfer)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if onSend != nil {
		onSend(transfer)
	}
	return nil
}

func (m *mockLedger) SendData(ctx context.Context, packet []byte) ([]byte, error) {
	return nil, nil
}

func (m *mockLedger) FulfillCondition(ctx context.Context, transferID string, fulfillment Fulfillment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fulfillErr != nil {
		return m.fulfillErr
	}
	m.fulfillments[transferID] = fulfillment
	return nil
}

func (m *mockLedger) GetFulfillment(ctx context.Context, transferID string) (Fulfillment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupResult, m.lookupErr
}

func (m *mockLedger) Transfers() <-chan Transfer {
	return m.transfers
}

func (m *mockLedger) SubscribeFulfillments(fn func(FulfillmentEvent)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *mockLedger) emitFulfillment(event FulfillmentEvent) {
	m.mu.Lock()
	subs := make([]func(FulfillmentEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(event)
	}
}

func (m *mockLedger) subscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockLedger) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sentTransfers)
}

func (m *mockLedger) fulfillmentFor(transferID string) (Fulfillment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fulfillments[transferID]
	return f, ok
}

func (m *mockLedger) fulfillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fulfillments)
}
