package ipr

import (
	"context"
	"time"
)

// ReceiveOutcome is the terminal state of one incoming-transfer validation run.
type ReceiveOutcome string

const (
	// OutcomeIgnored means the transfer was not this engine's concern
	// (not incoming). No event is emitted.
	OutcomeIgnored ReceiveOutcome = "ignored"

	// OutcomeUnconditional means the transfer carried no condition at all and
	// was surfaced directly as an unconditional receipt.
	OutcomeUnconditional ReceiveOutcome = "unconditional"

	// OutcomeRejected means validation failed; no ledger call was made.
	OutcomeRejected ReceiveOutcome = "rejected"

	// OutcomeFulfilled means the regenerated condition matched and the
	// fulfillment was submitted to the ledger.
	OutcomeFulfilled ReceiveOutcome = "fulfilled"
)

// ReceiveEvent is emitted once per processed transfer (ignored transfers
// excepted). Err carries the diagnostic for rejected transfers; Request and
// Fulfillment are set on the paths that produced them.
type ReceiveEvent struct {
	Outcome     ReceiveOutcome
	Transfer    Transfer
	Request     *PaymentRequest
	Fulfillment Fulfillment
	Err         error
}

// ReceiveEventSink observes validation outcomes. Sinks run synchronously on
// the validation goroutine and must not block.
type ReceiveEventSink func(ReceiveEvent)

// ReceiverOption configures the receiver.
type ReceiverOption func(*Receiver)

// WithEventSink registers an outcome observer.
func WithEventSink(sink ReceiveEventSink) ReceiverOption {
	return func(r *Receiver) {
		r.sinks = append(r.sinks, sink)
	}
}

// WithReceiverClock overrides the clock used for expiry checks.
func WithReceiverClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		r.now = now
	}
}

// Receiver validates incoming transfers and auto-fulfills the ones whose
// condition it can regenerate. It is stateless by design: every validation is
// a pure function of the transfer, the packet it carries and the seed, so
// runs for different transfers may proceed concurrently in any order.
type Receiver struct {
	ledger  Ledger
	sinks   []ReceiveEventSink
	metrics *receiverMetrics
	now     func() time.Time
}

// NewReceiver creates a receiver bound to a ledger plugin.
func NewReceiver(ledger Ledger, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		ledger: ledger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the ledger's incoming-transfer stream until ctx is cancelled or
// the stream closes. A failing transfer never stops the loop; its diagnostic
// goes out through the event sinks instead.
func (r *Receiver) Run(ctx context.Context, seed []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case transfer, ok := <-r.ledger.Transfers():
			if !ok {
				return nil
			}
			r.HandleTransfer(ctx, seed, transfer)
		}
	}
}

// HandleTransfer runs the validation chain for one transfer notification and
// returns the terminal event. Each check is a strict precondition for the
// next; the first failure short-circuits with no ledger mutation.
func (r *Receiver) HandleTransfer(ctx context.Context, seed []byte, transfer Transfer) ReceiveEvent {
	// 1. Direction: transfers we did not receive are silently ignored.
	if transfer.Direction != DirectionIncoming {
		return r.finish(ReceiveEvent{Outcome: OutcomeIgnored, Transfer: transfer})
	}

	// 2. A transfer with no condition at all is an unconditional receipt;
	// there is nothing to fulfill.
	if transfer.ExecutionCondition == "" && transfer.CancellationCondition == "" {
		return r.finish(ReceiveEvent{Outcome: OutcomeUnconditional, Transfer: transfer})
	}

	// 3. The transfer must carry a parseable request packet.
	request, err := ParseRequestFromPacket(transfer.Data)
	if err != nil {
		return r.reject(transfer, nil, NewValidationError("transfer does not carry a payment packet: %v", err))
	}

	// 4. The ledger-layer amount must equal the packet's declared amount;
	// a mismatch means truncation or tampering between layers.
	if transfer.Amount != request.DestinationAmount {
		return r.reject(transfer, request, NewIntegrityError(
			"transfer amount %s does not match packet amount %s", transfer.Amount, request.DestinationAmount))
	}

	// 5. If the packet states a condition it must be the one the transfer is
	// actually locked to. If it states none, adopt the transfer's condition
	// in memory for the rest of validation.
	if request.ExecutionCondition != "" && request.ExecutionCondition != transfer.ExecutionCondition {
		return r.reject(transfer, request, NewIntegrityError(
			"packet condition %s does not match transfer condition %s",
			request.ExecutionCondition, transfer.ExecutionCondition))
	}
	if request.ExecutionCondition == "" {
		request.ExecutionCondition = transfer.ExecutionCondition
	}

	// 6. Expiry: an unparseable instant and a past instant are distinct,
	// equally fatal failures.
	if request.ExpiresAt != "" {
		expiresAt, err := ParseTimestamp(request.ExpiresAt)
		if err != nil {
			return r.reject(transfer, request, NewExpiryError("invalid expiresAt %q: %v", request.ExpiresAt, err))
		}
		if r.now().After(expiresAt) {
			return r.reject(transfer, request, NewExpiryError("packet expired at %s", request.ExpiresAt))
		}
	}

	// 7. Regenerate the condition from the packet contents plus the seed and
	// compare byte for byte against what the transfer is locked to.
	condition, fulfillment, err := DeriveCondition(seed, request.WirePacket())
	if err != nil {
		return r.reject(transfer, request, err)
	}
	if condition != transfer.ExecutionCondition {
		return r.reject(transfer, request, NewIntegrityError(
			"regenerated condition %s does not match transfer condition %s",
			condition, transfer.ExecutionCondition))
	}

	// 8. Full match: release the transfer.
	if err := r.ledger.FulfillCondition(ctx, transfer.ID, fulfillment); err != nil {
		return r.reject(transfer, request, NewUpstreamError("fulfill condition", err))
	}
	return r.finish(ReceiveEvent{
		Outcome:     OutcomeFulfilled,
		Transfer:    transfer,
		Request:     request,
		Fulfillment: fulfillment,
	})
}

func (r *Receiver) reject(transfer Transfer, request *PaymentRequest, err error) ReceiveEvent {
	return r.finish(ReceiveEvent{
		Outcome:  OutcomeRejected,
		Transfer: transfer,
		Request:  request,
		Err:      err,
	})
}

func (r *Receiver) finish(event ReceiveEvent) ReceiveEvent {
	r.metrics.observe(event.Outcome)
	if event.Outcome != OutcomeIgnored {
		for _, sink := range r.sinks {
			sink(event)
		}
	}
	return event
}
