package transport

import (
	"context"
	"errors"
	"testing"

	ipr "github.com/interledger-go/ipr"
	"github.com/interledger-go/ipr/ledgertest"
)

type fakeStream struct {
	sendErr   error
	sent      string
	delivered string
	closed    bool
}

func (s *fakeStream) SendTotal(ctx context.Context, amount string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = amount
	s.delivered = amount
	return nil
}

func (s *fakeStream) TotalSent() string      { return s.sent }
func (s *fakeStream) TotalDelivered() string { return s.delivered }
func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeConnection struct {
	stream    *fakeStream
	streamErr error
	closed    bool
}

func (c *fakeConnection) CreateStream() (Stream, error) {
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	return c.stream, nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	conn        *fakeConnection
	dialErr     error
	destination string
	secret      []byte
}

func (d *fakeDialer) CreateConnection(ctx context.Context, destinationAccount string, sharedSecret []byte, ledger ipr.Ledger) (Connection, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.destination = destinationAccount
	d.secret = sharedSecret
	return d.conn, nil
}

func TestPay(t *testing.T) {
	stream := &fakeStream{}
	conn := &fakeConnection{stream: stream}
	dialer := &fakeDialer{conn: conn}
	ledger := ledgertest.New("example.ledger.sender")
	secret := []byte("shared-secret")

	accounting, err := Pay(context.Background(), dialer, "example.ledger.receiver", secret, ledger, "250")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if accounting.TotalSent != "250" || accounting.TotalDelivered != "250" {
		t.Errorf("Unexpected accounting %+v", accounting)
	}
	if dialer.destination != "example.ledger.receiver" || string(dialer.secret) != "shared-secret" {
		t.Error("Expected discovery details to reach the dialer")
	}
	if !stream.closed || !conn.closed {
		t.Error("Expected the stream and connection to be closed")
	}
}

func TestPayDialFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("no route")}
	_, err := Pay(context.Background(), dialer, "example.ledger.receiver", nil, ledgertest.New("a"), "1")
	if !ipr.IsCode(err, ipr.ErrCodeUpstreamFailure) {
		t.Errorf("Expected upstream failure, got %v", err)
	}
}

func TestPayStreamFailureStillCloses(t *testing.T) {
	stream := &fakeStream{sendErr: errors.New("peer reset")}
	conn := &fakeConnection{stream: stream}
	dialer := &fakeDialer{conn: conn}

	_, err := Pay(context.Background(), dialer, "example.ledger.receiver", nil, ledgertest.New("a"), "1")
	if !ipr.IsCode(err, ipr.ErrCodeUpstreamFailure) {
		t.Errorf("Expected upstream failure, got %v", err)
	}
	if !stream.closed || !conn.closed {
		t.Error("Expected the stream and connection to be closed on failure")
	}
}
