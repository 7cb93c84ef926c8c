// Package transport defines the narrow contract the engines consume from a
// chunked value transport (a STREAM-style protocol). Framing, encryption and
// congestion control live behind these interfaces, not here.
package transport

import (
	"context"

	ipr "github.com/interledger-go/ipr"
)

// Stream sends value toward the connection's destination in chunks until the
// requested total has been sent.
type Stream interface {
	// SendTotal blocks until amount (a decimal string in source units) has
	// been sent in aggregate on this stream, or ctx is cancelled.
	SendTotal(ctx context.Context, amount string) error

	// TotalSent is the aggregate amount sent so far.
	TotalSent() string

	// TotalDelivered is the aggregate amount the far side acknowledged.
	TotalDelivered() string

	Close() error
}

// Connection multiplexes streams toward one destination account.
type Connection interface {
	CreateStream() (Stream, error)
	Close() error
}

// Dialer opens connections using a destination account and shared secret
// obtained from discovery.
type Dialer interface {
	CreateConnection(ctx context.Context, destinationAccount string, sharedSecret []byte, ledger ipr.Ledger) (Connection, error)
}

// Accounting is the post-completion summary of a paid connection.
type Accounting struct {
	TotalSent      string
	TotalDelivered string
}

// Pay opens a connection, sends amount on a single stream and reports the
// aggregate accounting. The connection and stream are closed on every path.
func Pay(ctx context.Context, dialer Dialer, destinationAccount string, sharedSecret []byte, ledger ipr.Ledger, amount string) (*Accounting, error) {
	conn, err := dialer.CreateConnection(ctx, destinationAccount, sharedSecret, ledger)
	if err != nil {
		return nil, ipr.NewUpstreamError("create connection", err)
	}
	defer conn.Close()

	stream, err := conn.CreateStream()
	if err != nil {
		return nil, ipr.NewUpstreamError("create stream", err)
	}
	defer stream.Close()

	if err := stream.SendTotal(ctx, amount); err != nil {
		return nil, ipr.NewUpstreamError("send total", err)
	}
	return &Accounting{
		TotalSent:      stream.TotalSent(),
		TotalDelivered: stream.TotalDelivered(),
	}, nil
}
