package ipr

import (
	"encoding/json"
	"time"
)

// TransferDirection tells whose side of the ledger a transfer notification
// describes.
type TransferDirection string

const (
	DirectionIncoming TransferDirection = "incoming"
	DirectionOutgoing TransferDirection = "outgoing"
)

// Transfer is the ledger-layer record that carries a payment packet. It is
// what ledger plugins deliver on their notification stream, distinct from the
// application-layer packet nested in Data.
type Transfer struct {
	ID                    string            `json:"id"`
	Direction             TransferDirection `json:"direction"`
	Account               string            `json:"account"`
	Ledger                string            `json:"ledger"`
	Amount                string            `json:"amount"`
	ExecutionCondition    Condition         `json:"executionCondition,omitempty"`
	CancellationCondition Condition         `json:"cancellationCondition,omitempty"`
	ExpiresAt             string            `json:"expiresAt,omitempty"`
	Data                  []byte            `json:"data,omitempty"`
}

// PacketData is the application payload nested inside a wire packet.
type PacketData struct {
	ID                 string          `json:"id"`
	ExpiresAt          string          `json:"expiresAt,omitempty"`
	UserData           json.RawMessage `json:"userData,omitempty"`
	ExecutionCondition Condition       `json:"executionCondition,omitempty"`
}

// WirePacket is the canonical wire schema for execution-conditioned
// transfers: the outer ledger packet carries account/ledger/amount, and Data
// nests the request id, expiry and user payload so they survive round-trips
// through untrusted intermediaries.
type WirePacket struct {
	Account string     `json:"account"`
	Ledger  string     `json:"ledger"`
	Amount  string     `json:"amount"`
	Data    PacketData `json:"data"`
}

// Marshal serializes the packet to wire JSON.
func (p WirePacket) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// PaymentRequest describes a single payment obligation. It is built either
// from explicit parameters on the receiving side or parsed from an incoming
// wire packet on the sending side, and is immutable once its condition is set.
type PaymentRequest struct {
	// ID must be unique per request. It is an input to condition derivation,
	// so reuse causes condition collisions across distinct requests.
	ID                 string
	DestinationAmount  string
	DestinationAccount string
	DestinationLedger  string
	// ExpiresAt is an ISO-8601 instant. Empty means the request never
	// expires at this layer.
	ExpiresAt          string
	UserData           json.RawMessage
	ExecutionCondition Condition
	// UnsafeOptimisticTransport opts out of the execution condition,
	// accepting the risk of value loss in transit.
	UnsafeOptimisticTransport bool
}

// RequestParams are the inputs to CreateRequest.
type RequestParams struct {
	ID                        string
	DestinationAmount         string
	DestinationAccount        string
	DestinationLedger         string
	ExpiresAt                 string
	UserData                  json.RawMessage
	ExecutionCondition        Condition
	UnsafeOptimisticTransport bool
}

// Quote is the ephemeral result of a quoting round-trip. It is used once to
// check the caller's bounds and then discarded.
type Quote struct {
	SourceAmount         string `json:"sourceAmount"`
	DestinationAmount    string `json:"destinationAmount"`
	ConnectorAccount     string `json:"connectorAccount"`
	SourceExpiryDuration string `json:"sourceExpiryDuration"`
}

// QuoteParams describe the payment to be quoted.
type QuoteParams struct {
	SourceAccount      string `json:"sourceAccount,omitempty"`
	DestinationAccount string `json:"destinationAccount"`
	DestinationLedger  string `json:"destinationLedger,omitempty"`
	DestinationAmount  string `json:"destinationAmount,omitempty"`
	SourceAmount       string `json:"sourceAmount,omitempty"`
}

// SendParams are the inputs to Sender.Send.
type SendParams struct {
	// Packet is the serialized payment request received out of band.
	Packet []byte

	// MaxSourceAmount bounds slippage: the quoted source amount may not
	// exceed it. Required.
	MaxSourceAmount string

	// MaxSourceHoldDuration bounds liquidity risk, in seconds. Optional.
	MaxSourceHoldDuration string

	// UnsafeOptimisticTransport must be set explicitly to send a packet
	// that carries no execution condition.
	UnsafeOptimisticTransport bool
}

// PaymentResult is the terminal outcome of a successful send.
type PaymentResult struct {
	TransferID        string      `json:"transferId"`
	SourceAmount      string      `json:"sourceAmount"`
	DestinationAmount string      `json:"destinationAmount"`
	Fulfillment       Fulfillment `json:"fulfillment,omitempty"`
}

// FulfillmentEvent is emitted by a ledger plugin when one of its outgoing
// transfers is fulfilled by the far side.
type FulfillmentEvent struct {
	TransferID  string
	Condition   Condition
	Fulfillment Fulfillment
}

// ISOMillis is the timestamp layout used on the wire.
const ISOMillis = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the wire timestamp layout (UTC, millisecond
// precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOMillis)
}

// ParseTimestamp parses a wire timestamp, accepting any RFC 3339 form.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
