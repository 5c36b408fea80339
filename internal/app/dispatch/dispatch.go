// Package dispatch delivers reward notifications off the request path.
//
// The dispatcher:
//  1. Accepts a notification only when a delivery slot is free
//  2. Bounds each delivery with a timeout
//  3. Counts delivered and dropped notifications
//
// Ledger state never depends on delivery; a dropped notification is logged
// and forgotten.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// Config controls dispatcher behavior.
type Config struct {
	MaxConcurrent  int           // concurrent deliveries (default: 4)
	DeliverTimeout time.Duration // per delivery (default: 10s)
}

// DefaultConfig returns safe dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  4,
		DeliverTimeout: 10 * time.Second,
	}
}

// Dispatcher forwards notifications to a sink asynchronously. It implements
// domain.Notifier.
type Dispatcher struct {
	mu        sync.RWMutex
	config    Config
	sink      domain.Notifier
	log       *slog.Logger
	sem       chan struct{} // concurrency semaphore
	wg        sync.WaitGroup
	active    int
	delivered int64
	dropped   int64
}

// New creates a dispatcher in front of sink.
func New(cfg Config, sink domain.Notifier, logger *slog.Logger) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		config: cfg,
		sink:   sink,
		log:    logger,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Notify queues n for delivery and returns immediately. When every slot is
// busy the notification is dropped.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	select {
	case d.sem <- struct{}{}:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.log.WarnContext(ctx, "notification dropped, dispatcher at capacity",
			"account_id", n.AccountID,
			"kind", n.Kind,
			"max_concurrent", d.config.MaxConcurrent,
		)
		return
	}

	d.wg.Add(1)
	go d.deliver(context.WithoutCancel(ctx), n)
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	defer d.wg.Done()
	defer func() { <-d.sem }()

	d.mu.Lock()
	d.active++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.active--
		d.mu.Unlock()
	}()

	if d.config.DeliverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DeliverTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "notification delivery panicked", "account_id", n.AccountID, "panic", r)
		}
	}()
	d.sink.Notify(ctx, n)

	d.mu.Lock()
	d.delivered++
	d.mu.Unlock()
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns dispatcher statistics.
type Stats struct {
	Active    int   `json:"active"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	MaxSlots  int   `json:"max_slots"`
	FreeSlots int   `json:"free_slots"`
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		Active:    d.active,
		Delivered: d.delivered,
		Dropped:   d.dropped,
		MaxSlots:  d.config.MaxConcurrent,
		FreeSlots: d.config.MaxConcurrent - d.active,
	}
}
