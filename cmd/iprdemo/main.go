// Command iprdemo runs a sender and an auto-fulfilling receiver against an
// in-memory ledger and pays a handful of condition-secured payment requests
// end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	ipr "github.com/interledger-go/ipr"
	"github.com/interledger-go/ipr/ledgertest"
)

// fixedRateQuoter quotes 1:1 with a constant hold duration, standing in for
// a connector.
type fixedRateQuoter struct {
	holdSeconds string
}

func (q fixedRateQuoter) Quote(ctx context.Context, params ipr.QuoteParams) (*ipr.Quote, error) {
	return &ipr.Quote{
		SourceAmount:         params.DestinationAmount,
		DestinationAmount:    params.DestinationAmount,
		ConnectorAccount:     "demo.ledger.connector",
		SourceExpiryDuration: q.holdSeconds,
	}, nil
}

func main() {
	configPath := flag.String("config", "", "path to yaml config (environment is used when empty)")
	flag.Parse()

	var cfg Config
	var err error
	if *configPath != "" {
		err = cfg.Load(*configPath)
	} else {
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seed := []byte(cfg.Seed)
	ledger := ledgertest.New(cfg.Ledger + "sender")
	if err := ledger.Connect(ctx); err != nil {
		log.Fatalf("connect ledger: %v", err)
	}
	defer ledger.Disconnect(context.Background())

	receiver := ipr.NewReceiver(ledger, ipr.WithEventSink(func(ev ipr.ReceiveEvent) {
		if ev.Err != nil {
			log.Printf("receiver: transfer %s %s: %v", ev.Transfer.ID, ev.Outcome, ev.Err)
			return
		}
		log.Printf("receiver: transfer %s %s", ev.Transfer.ID, ev.Outcome)
	}))
	sender := ipr.NewSender(ledger, fixedRateQuoter{holdSeconds: cfg.MaxHoldSeconds})

	runCtx, stopReceiver := context.WithCancel(ctx)
	defer stopReceiver()

	var receiverGroup errgroup.Group
	receiverGroup.Go(func() error {
		err := receiver.Run(runCtx, seed)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Payments; i++ {
		group.Go(func() error {
			request, err := ipr.CreateRequest(ipr.RequestParams{
				DestinationAmount:  cfg.Amount,
				DestinationAccount: cfg.ReceiverAccount,
				DestinationLedger:  cfg.Ledger,
			})
			if err != nil {
				return err
			}
			packet, err := request.ToWirePacket(seed)
			if err != nil {
				return err
			}
			result, err := sender.Send(groupCtx, ipr.SendParams{
				Packet:                packet,
				MaxSourceAmount:       cfg.MaxSourceAmount,
				MaxSourceHoldDuration: cfg.MaxHoldSeconds,
			})
			if err != nil {
				return fmt.Errorf("send request %s: %w", request.ID, err)
			}
			log.Printf("sender: request %s paid, transfer %s, fulfillment %s",
				request.ID, result.TransferID, result.Fulfillment)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Fatalf("payments failed: %v", err)
	}
	stopReceiver()
	if err := receiverGroup.Wait(); err != nil {
		log.Fatalf("receiver: %v", err)
	}
	log.Printf("all %d payments fulfilled", cfg.Payments)
}
