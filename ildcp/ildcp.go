// Package ildcp fetches the local address and asset details a connector
// assigns to a client, via a request/response exchange addressed to the
// reserved peer.config destination.
package ildcp

import (
	"context"
	"encoding/json"

	ipr "github.com/interledger-go/ipr"
)

// DestinationAddress is the reserved address config requests are sent to.
const DestinationAddress = "peer.config"

// Info is the negotiated client configuration.
type Info struct {
	ClientAddress string `json:"client_address"`
	AssetCode     string `json:"asset_code"`
	AssetScale    uint8  `json:"asset_scale"`
}

type request struct {
	Destination string `json:"destination"`
}

// Fetch performs one config exchange over the ledger's data channel.
func Fetch(ctx context.Context, ledger ipr.Ledger) (*Info, error) {
	packet, err := json.Marshal(request{Destination: DestinationAddress})
	if err != nil {
		return nil, err
	}

	reply, err := ledger.SendData(ctx, packet)
	if err != nil {
		return nil, ipr.NewUpstreamError("ildcp exchange", err)
	}

	var info Info
	if err := json.Unmarshal(reply, &info); err != nil {
		return nil, ipr.NewUpstreamError("ildcp exchange", err)
	}
	if info.ClientAddress == "" {
		return nil, ipr.NewValidationError("ildcp response is missing client_address")
	}
	if info.AssetCode == "" {
		return nil, ipr.NewValidationError("ildcp response is missing asset_code")
	}
	return &info, nil
}
