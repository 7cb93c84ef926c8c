package ipr

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// transferIDNamespace seeds deterministic transfer ids: the same logical
// payment always maps to the same id, which is what makes crashed or
// concurrent retries collide on the ledger instead of double-spending.
var transferIDNamespace = uuid.MustParse("f4a09e51-24f7-42e6-9b87-2cf0d4a2b0ce")

// DefaultSendCacheTTL bounds how long a completed send result is reusable by
// identical retries.
const DefaultSendCacheTTL = 10 * time.Minute

// SenderOption configures the sender.
type SenderOption func(*Sender)

// WithSendCache replaces the default in-process send cache.
func WithSendCache(cache *SendCache) SenderOption {
	return func(s *Sender) {
		s.cache = cache
	}
}

// WithSenderClock overrides the clock used for expiry deadlines.
func WithSenderClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		s.now = now
	}
}

// Sender quotes and submits payments against a ledger plugin, enforcing the
// caller's slippage and hold-duration bounds and reconciling duplicate
// submissions.
type Sender struct {
	ledger Ledger
	quoter Quoter
	cache  *SendCache
	now    func() time.Time
}

// NewSender creates a sender bound to a ledger plugin and a quoting facility.
func NewSender(ledger Ledger, quoter Quoter, opts ...SenderOption) *Sender {
	s := &Sender{
		ledger: ledger,
		quoter: quoter,
		cache:  NewSendCache(DefaultSendCacheTTL),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote obtains a quote for the given payment. No bound checking happens
// here; Send enforces the caller's limits.
func (s *Sender) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	quote, err := s.quoter.Quote(ctx, params)
	if err != nil {
		return nil, NewUpstreamError("quote", err)
	}
	return quote, nil
}

// Send quotes and submits the payment described by the packet in params and
// resolves once its fulfillment is observed.
//
// Identical logical payments map to the same deterministic transfer id, so a
// retry after a crash or a concurrent duplicate call cannot double-spend: the
// ledger rejects the second submission and Send falls back to looking up the
// fulfillment of the transfer that already exists.
func (s *Sender) Send(ctx context.Context, params SendParams) (*PaymentResult, error) {
	if params.MaxSourceAmount == "" {
		return nil, NewValidationError("maxSourceAmount is required")
	}
	request, err := ParseRequestFromPacket(params.Packet)
	if err != nil {
		return nil, err
	}
	condition := request.ExecutionCondition
	if condition == "" && !params.UnsafeOptimisticTransport {
		return nil, NewValidationError("packet carries no executionCondition; set unsafeOptimisticTransport to send unsecured value anyway")
	}

	canonical, err := CanonicalPacketBytes(request.WirePacket())
	if err != nil {
		return nil, err
	}
	transferID := uuid.NewSHA1(transferIDNamespace, canonical).String()

	status, cached, done := s.cache.CheckAndMark(transferID)
	switch status {
	case SendStatusCached:
		return cached, nil
	case SendStatusInFlight:
		result, err := s.cache.WaitForResult(ctx, transferID, done)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		// The in-flight call failed; retry with a fresh in-flight slot.
		return s.Send(ctx, params)
	case SendStatusNotFound:
		// This call owns the in-flight slot.
	}

	result, err := s.sendOnce(ctx, params, request, condition, transferID)
	if err != nil {
		s.cache.Fail(transferID, done)
		return nil, err
	}
	s.cache.Complete(transferID, result, done)
	return result, nil
}

func (s *Sender) sendOnce(ctx context.Context, params SendParams, request *PaymentRequest, condition Condition, transferID string) (*PaymentResult, error) {
	quote, err := s.Quote(ctx, QuoteParams{
		SourceAccount:      s.ledger.Account(),
		DestinationAccount: request.DestinationAccount,
		DestinationLedger:  request.DestinationLedger,
		DestinationAmount:  request.DestinationAmount,
	})
	if err != nil {
		return nil, err
	}

	if exceeded, err := decimalGreater(quote.SourceAmount, params.MaxSourceAmount); err != nil {
		return nil, NewValidationError("invalid amount: %v", err)
	} else if exceeded {
		return nil, NewProtocolError(ErrCodeMaxSourceAmountExceeded,
			"quoted source amount "+quote.SourceAmount+" exceeds maxSourceAmount "+params.MaxSourceAmount, nil)
	}
	if params.MaxSourceHoldDuration != "" {
		if exceeded, err := decimalGreater(quote.SourceExpiryDuration, params.MaxSourceHoldDuration); err != nil {
			return nil, NewValidationError("invalid hold duration: %v", err)
		} else if exceeded {
			return nil, NewProtocolError(ErrCodeMaxHoldDurationExceeded,
				"quoted hold duration "+quote.SourceExpiryDuration+" exceeds maxSourceHoldDuration "+params.MaxSourceHoldDuration, nil)
		}
	}

	// Resolve the wait deadline before touching the ledger so a malformed
	// expiry fails fast.
	var deadline time.Time
	if request.ExpiresAt != "" {
		expiresAt, err := ParseTimestamp(request.ExpiresAt)
		if err != nil {
			return nil, NewValidationError("invalid packet expiresAt %q: %v", request.ExpiresAt, err)
		}
		deadline = expiresAt
	}

	transfer := Transfer{
		ID:                 transferID,
		Direction:          DirectionOutgoing,
		Account:            quote.ConnectorAccount,
		Ledger:             request.DestinationLedger,
		Amount:             quote.SourceAmount,
		ExecutionCondition: condition,
		ExpiresAt:          request.ExpiresAt,
		Data:               params.Packet,
	}

	result := &PaymentResult{
		TransferID:        transferID,
		SourceAmount:      quote.SourceAmount,
		DestinationAmount: quote.DestinationAmount,
	}

	if condition == "" {
		// Optimistic transport: nothing will ever fulfill, resolve on the
		// ledger's acceptance of the transfer.
		if err := s.ledger.SendTransfer(ctx, transfer); err != nil {
			return nil, NewUpstreamError("send transfer", err)
		}
		return result, nil
	}

	// Subscribe before submitting so a fulfillment racing the ack is not
	// lost. Events for other in-flight payments on the same connection are
	// filtered out by condition identity.
	fulfilled := make(chan Fulfillment, 1)
	cancel := s.ledger.SubscribeFulfillments(func(event FulfillmentEvent) {
		if event.Condition != condition {
			return
		}
		select {
		case fulfilled <- event.Fulfillment:
		default:
		}
	})
	defer cancel()

	if err := s.ledger.SendTransfer(ctx, transfer); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return s.reconcileDuplicate(ctx, transferID, result)
		}
		return nil, NewUpstreamError("send transfer", err)
	}

	var expiry <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(deadline.Sub(s.now()))
		defer timer.Stop()
		expiry = timer.C
	}

	select {
	case fulfillment := <-fulfilled:
		result.Fulfillment = fulfillment
		return result, nil
	case <-expiry:
		return nil, NewProtocolError(ErrCodeTransferExpired,
			"transfer "+transferID+" expired at "+request.ExpiresAt+" before a fulfillment was observed", nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reconcileDuplicate converges a duplicate-id rejection onto the outcome of
// the transfer that already exists with this id.
func (s *Sender) reconcileDuplicate(ctx context.Context, transferID string, result *PaymentResult) (*PaymentResult, error) {
	fulfillment, err := s.ledger.GetFulfillment(ctx, transferID)
	if err == nil {
		result.Fulfillment = fulfillment
		return result, nil
	}
	if errors.Is(err, ErrMissingFulfillment) {
		return nil, NewProtocolError(ErrCodeFulfillmentPending,
			"transfer "+transferID+" already exists but has not been fulfilled yet; retry later", nil)
	}
	return nil, NewUpstreamError("get fulfillment", err)
}

// decimalGreater reports whether decimal string a > b.
func decimalGreater(a, b string) (bool, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return false, errors.New("not a decimal: " + a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return false, errors.New("not a decimal: " + b)
	}
	return ra.Cmp(rb) > 0, nil
}
