package ledgertest

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	ipr "github.com/interledger-go/ipr"
)

func testFulfillment(preimage string) ipr.Fulfillment {
	return ipr.Fulfillment("cf:0:" + base64.RawURLEncoding.EncodeToString([]byte(preimage)))
}

func conditionalTransfer(id string, fulfillment ipr.Fulfillment) ipr.Transfer {
	condition, _ := fulfillment.Condition()
	return ipr.Transfer{
		ID:                 id,
		Direction:          ipr.DirectionOutgoing,
		Account:            "example.ledger.receiver",
		Ledger:             "example.ledger.",
		Amount:             "10",
		ExecutionCondition: condition,
		ExpiresAt:          time.Now().Add(time.Minute).UTC().Format(ipr.ISOMillis),
	}
}

func TestSendTransferRejectsDuplicateID(t *testing.T) {
	ledger := New("example.ledger.sender")
	transfer := conditionalTransfer("t-1", testFulfillment("preimage-one"))

	if err := ledger.SendTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Same id, different payload; still a duplicate.
	transfer.Amount = "999"
	err := ledger.SendTransfer(context.Background(), transfer)
	if !errors.Is(err, ipr.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestSendTransferDeliversIncoming(t *testing.T) {
	ledger := New("example.ledger.receiver")
	transfer := conditionalTransfer("t-2", testFulfillment("preimage-two"))

	if err := ledger.SendTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case got := <-ledger.Transfers():
		if got.ID != "t-2" {
			t.Errorf("Expected transfer t-2, got %s", got.ID)
		}
		if got.Direction != ipr.DirectionIncoming {
			t.Errorf("Expected redelivery as incoming, got %v", got.Direction)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an incoming notification")
	}
}

func TestFulfillConditionVerifiesPreimage(t *testing.T) {
	ledger := New("example.ledger.receiver")
	fulfillment := testFulfillment("preimage-three")
	transfer := conditionalTransfer("t-3", fulfillment)

	if err := ledger.SendTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := ledger.FulfillCondition(context.Background(), "t-3", testFulfillment("wrong")); err == nil {
		t.Error("Expected rejection of a non-matching preimage")
	}
	if err := ledger.FulfillCondition(context.Background(), "t-3", fulfillment); err != nil {
		t.Errorf("Unexpected error for the matching preimage: %v", err)
	}
	// Resubmission of the same fulfillment is idempotent.
	if err := ledger.FulfillCondition(context.Background(), "t-3", fulfillment); err != nil {
		t.Errorf("Unexpected error on resubmission: %v", err)
	}
}

func TestFulfillConditionUnknownTransfer(t *testing.T) {
	ledger := New("example.ledger.receiver")
	err := ledger.FulfillCondition(context.Background(), "missing", testFulfillment("p"))
	if !errors.Is(err, ipr.ErrTransferNotFound) {
		t.Errorf("Expected ErrTransferNotFound, got %v", err)
	}
}

func TestGetFulfillmentStates(t *testing.T) {
	ledger := New("example.ledger.receiver")
	fulfillment := testFulfillment("preimage-four")
	transfer := conditionalTransfer("t-4", fulfillment)

	if _, err := ledger.GetFulfillment(context.Background(), "t-4"); !errors.Is(err, ipr.ErrTransferNotFound) {
		t.Errorf("Expected ErrTransferNotFound before submission, got %v", err)
	}

	if err := ledger.SendTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := ledger.GetFulfillment(context.Background(), "t-4"); !errors.Is(err, ipr.ErrMissingFulfillment) {
		t.Errorf("Expected ErrMissingFulfillment before execution, got %v", err)
	}

	if err := ledger.FulfillCondition(context.Background(), "t-4", fulfillment); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := ledger.GetFulfillment(context.Background(), "t-4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != fulfillment {
		t.Errorf("Expected %s, got %s", fulfillment, got)
	}
}

func TestSubscribeFulfillments(t *testing.T) {
	ledger := New("example.ledger.receiver")
	fulfillment := testFulfillment("preimage-five")
	transfer := conditionalTransfer("t-5", fulfillment)

	events := make(chan ipr.FulfillmentEvent, 1)
	cancel := ledger.SubscribeFulfillments(func(ev ipr.FulfillmentEvent) {
		events <- ev
	})
	if ledger.SubscriberCount() != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", ledger.SubscriberCount())
	}

	if err := ledger.SendTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := ledger.FulfillCondition(context.Background(), "t-5", fulfillment); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case ev := <-events:
		if ev.TransferID != "t-5" || ev.Fulfillment != fulfillment {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a fulfillment event")
	}

	cancel()
	if ledger.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after cancel, got %d", ledger.SubscriberCount())
	}
}

func TestSeedSupportsDuplicateScenarios(t *testing.T) {
	ledger := New("example.ledger.sender")
	fulfillment := testFulfillment("preimage-six")
	transfer := conditionalTransfer("t-6", fulfillment)

	ledger.Seed(transfer, fulfillment)

	if err := ledger.SendTransfer(context.Background(), transfer); !errors.Is(err, ipr.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID for a seeded id, got %v", err)
	}
	got, err := ledger.GetFulfillment(context.Background(), "t-6")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != fulfillment {
		t.Errorf("Expected seeded fulfillment, got %s", got)
	}
}
