package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/notexe/visa-timeline/internal/metrics"
)

// Dispatcher delivers due notifications from a Queue on a fixed interval.
type Dispatcher struct {
	queue    *Queue
	sender   Sender
	interval time.Duration
	// OnTick runs after every delivery pass, e.g. to refresh event statuses.
	OnTick func(ctx context.Context)
}

// NewDispatcher creates a dispatcher polling queue every interval.
func NewDispatcher(queue *Queue, sender Sender, interval time.Duration) *Dispatcher {
	return &Dispatcher{queue: queue, sender: sender, interval: interval}
}

// Run blocks and runs Tick on interval + immediately on start.
// It exits when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.interval <= 0 {
		return fmt.Errorf("dispatch interval must be positive, got %s", d.interval)
	}

	log.Printf("[notify] Started. Interval: %s", d.interval)

	d.tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[notify] Shutting down...")
			return nil
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	if _, err := d.Tick(ctx); err != nil {
		log.Printf("[notify] Error: %v", err)
	}
	if d.OnTick != nil {
		d.OnTick(ctx)
	}
}

// Tick delivers every due notification once. A failed send leaves the
// notification pending for the next pass.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	due, err := d.queue.Due(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range due {
		if err := d.sender.Send(ctx, n); err != nil {
			log.Printf("[notify] Error: send %s failed: %v", n.ID, err)
			metrics.Deliveries.WithLabelValues("failed").Inc()
			continue
		}
		if err := d.queue.MarkDelivered(ctx, n.ID); err != nil {
			log.Printf("[notify] Error: %v", err)
			continue
		}
		metrics.Deliveries.WithLabelValues("ok").Inc()
		delivered++
	}
	if delivered > 0 {
		log.Printf("[notify] Delivered %d notification(s).", delivered)
	}
	return delivered, nil
}
