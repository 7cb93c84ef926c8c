package ipr

import "context"

// Ledger is the capability contract a ledger plugin must provide. The engines
// never inspect plugin internals beyond this interface.
//
// To conform to this contract, implementations:
//   - Must return ErrDuplicateID (wrapped or verbatim) from SendTransfer when
//     a transfer with the same id already exists.
//   - Must return ErrMissingFulfillment from GetFulfillment when the transfer
//     exists but has not been fulfilled, and ErrTransferNotFound when it does
//     not exist.
//   - Must verify that a submitted fulfillment's preimage hashes to the
//     transfer's execution condition before accepting it.
//   - Must make SendTransfer, FulfillCondition and GetFulfillment safe to
//     invoke concurrently.
type Ledger interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Account returns the plugin's own ledger-local account address.
	Account() string

	// SendTransfer submits an outgoing conditional transfer.
	SendTransfer(ctx context.Context, transfer Transfer) error

	// SendData performs a request/response exchange with the connected peer,
	// used by discovery protocols such as ILDCP.
	SendData(ctx context.Context, packet []byte) ([]byte, error)

	// FulfillCondition releases an incoming transfer by revealing the
	// preimage of its execution condition.
	FulfillCondition(ctx context.Context, transferID string, fulfillment Fulfillment) error

	// GetFulfillment looks up the fulfillment of an already-executed transfer.
	GetFulfillment(ctx context.Context, transferID string) (Fulfillment, error)

	// Transfers is the stream of incoming transfer notifications.
	Transfers() <-chan Transfer

	// SubscribeFulfillments registers a callback for outgoing-transfer
	// fulfillment events and returns the matching deregistration. Callers
	// must invoke cancel on every exit path so handlers do not leak across
	// repeated sends.
	SubscribeFulfillments(fn func(FulfillmentEvent)) (cancel func())
}

// Quoter translates a destination amount into a source amount plus a maximum
// hold duration. Usually backed by a connector.
type Quoter interface {
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)
}
