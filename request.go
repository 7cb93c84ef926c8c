package ipr

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultRequestTTL is the expiry window applied when a request is created
// without an explicit ExpiresAt.
const DefaultRequestTTL = 30 * time.Second

// wirePacketSchema validates the structural shape of an incoming wire packet
// before any field mapping happens.
const wirePacketSchema = `{
	"type": "object",
	"required": ["account", "ledger", "amount", "data"],
	"properties": {
		"account": {"type": "string", "minLength": 1},
		"ledger": {"type": "string", "minLength": 1},
		"amount": {"type": "string", "minLength": 1},
		"data": {
			"type": "object",
			"required": ["id"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"expiresAt": {"type": "string"},
				"executionCondition": {"type": "string"}
			}
		}
	}
}`

var compiledPacketSchema = gojsonschema.NewStringLoader(wirePacketSchema)

// CreateRequest builds a payment request from explicit parameters. The
// required routing fields must be present; a fresh unique id and a default
// expiry are filled in when omitted.
func CreateRequest(params RequestParams) (*PaymentRequest, error) {
	if params.DestinationAmount == "" {
		return nil, NewValidationError("destinationAmount is required")
	}
	if params.DestinationAccount == "" {
		return nil, NewValidationError("destinationAccount is required")
	}
	if params.DestinationLedger == "" {
		return nil, NewValidationError("destinationLedger is required")
	}

	req := &PaymentRequest{
		ID:                        params.ID,
		DestinationAmount:         params.DestinationAmount,
		DestinationAccount:        params.DestinationAccount,
		DestinationLedger:         params.DestinationLedger,
		ExpiresAt:                 params.ExpiresAt,
		UserData:                  params.UserData,
		ExecutionCondition:        params.ExecutionCondition,
		UnsafeOptimisticTransport: params.UnsafeOptimisticTransport,
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ExpiresAt == "" {
		req.ExpiresAt = FormatTimestamp(time.Now().Add(DefaultRequestTTL))
	}
	return req, nil
}

// ParseRequestFromPacket reconstructs a payment request from wire JSON
// received out of band or carried in a ledger transfer.
func ParseRequestFromPacket(raw []byte) (*PaymentRequest, error) {
	if len(raw) == 0 {
		return nil, NewValidationError("packet is required")
	}
	result, err := gojsonschema.Validate(compiledPacketSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, NewValidationError("packet is not valid JSON: %v", err)
	}
	if !result.Valid() {
		// Surface the first schema violation; one is enough to act on.
		return nil, NewValidationError("malformed packet: %s", result.Errors()[0].String())
	}

	var pkt WirePacket
	if err := json.Unmarshal(raw, &pkt); err != nil {
		return nil, NewValidationError("packet is not valid JSON: %v", err)
	}
	return RequestFromWirePacket(pkt), nil
}

// RequestFromWirePacket maps wire field names onto the request vocabulary.
func RequestFromWirePacket(pkt WirePacket) *PaymentRequest {
	return &PaymentRequest{
		ID:                 pkt.Data.ID,
		DestinationAmount:  pkt.Amount,
		DestinationAccount: pkt.Account,
		DestinationLedger:  pkt.Ledger,
		ExpiresAt:          pkt.Data.ExpiresAt,
		UserData:           pkt.Data.UserData,
		ExecutionCondition: pkt.Data.ExecutionCondition,
	}
}

// WirePacket maps the request back onto the wire schema.
func (r *PaymentRequest) WirePacket() WirePacket {
	return WirePacket{
		Account: r.DestinationAccount,
		Ledger:  r.DestinationLedger,
		Amount:  r.DestinationAmount,
		Data: PacketData{
			ID:                 r.ID,
			ExpiresAt:          r.ExpiresAt,
			UserData:           r.UserData,
			ExecutionCondition: r.ExecutionCondition,
		},
	}
}

// ToWirePacket serializes the request for sending over an
// execution-conditioned transport. If no condition is set yet and the request
// is not optimistic, the condition is derived here from seed: derivation is
// deferred to serialization time so a request can be built before the seed is
// at hand.
func (r *PaymentRequest) ToWirePacket(seed []byte) ([]byte, error) {
	if r.ExecutionCondition == "" && !r.UnsafeOptimisticTransport {
		if len(seed) == 0 {
			return nil, NewValidationError("executionCondition is required unless unsafeOptimisticTransport is set")
		}
		condition, _, err := DeriveCondition(seed, r.WirePacket())
		if err != nil {
			return nil, err
		}
		r.ExecutionCondition = condition
	}
	return r.WirePacket().Marshal()
}
