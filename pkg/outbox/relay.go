package outbox

import (
	"context"
	"time"

	"github.com/mohamedebada21/last-online-halal/pkg/logging"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
)

// Relay moves committed outbox records to a Publisher. Records are handed over
// in id order; a failed publish stops the batch so the record is retried first
// on the next pass.
type Relay struct {
	Source    Source
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
	Service   string
	Metrics   *metrics.ShopMetrics
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			logging.Log(logging.Fields{Service: r.Service, Step: "outbox_relay", Status: "error", Error: err.Error()})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and reports how many records were marked sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	records, err := r.Source.FetchPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		if err := r.Publisher.Publish(ctx, rec); err != nil {
			r.Metrics.Relayed("error")
			return sent, err
		}
		if err := r.Source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		r.Metrics.Relayed("ok")
		logging.Log(logging.Fields{Service: r.Service, OrderID: rec.Key, EventID: rec.EventID, Step: "outbox_relay", Status: "sent"})
		sent++
	}
	return sent, nil
}
