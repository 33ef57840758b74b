package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
)

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Inbox remembers which events were already handled.
type Inbox interface {
	MarkReceived(ctx context.Context, evt contracts.Event) (bool, error)
}

// Consumer reads order events from Kafka and dispatches each event id at most
// once.
type Consumer struct {
	Reader     Reader
	Inbox      Inbox
	Dispatcher *Dispatcher
	Service    string
	RetryDelay time.Duration
}

// Run blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.Reader.Close()
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logging.Log(logging.Fields{Service: c.Service, Step: "kafka_read", Error: err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var evt contracts.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		logging.Log(logging.Fields{Service: c.Service, Step: "decode", Error: err.Error()})
		return
	}
	if evt.EventID == "" {
		return
	}

	fresh, err := c.Inbox.MarkReceived(ctx, evt)
	if err != nil {
		logging.Log(logging.Fields{Service: c.Service, OrderID: evt.OrderID, EventID: evt.EventID, Step: "inbox", Error: err.Error()})
		return
	}
	if !fresh {
		logging.Log(logging.Fields{Service: c.Service, OrderID: evt.OrderID, EventID: evt.EventID, Step: evt.Type, Status: "duplicate"})
		return
	}
	_ = c.Dispatcher.Handle(ctx, evt)
}
