package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// BatchPublisher is the part of kafka.Producer the collector needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector records events in the local Aggregator synchronously and, when a
// publisher is attached, forwards them in batches. Track never blocks: when
// the buffer is full the event is still aggregated but not forwarded.
type Collector struct {
	aggregator    *Aggregator
	publisher     BatchPublisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	startOnce     sync.Once
	mu            sync.RWMutex
	closed        bool
}

type CollectorOption func(*Collector)

func WithPublisher(p BatchPublisher) CollectorOption {
	return func(c *Collector) { c.publisher = p }
}

// WithBatching sets the flush thresholds for forwarded events.
func WithBatching(size int, interval time.Duration) CollectorOption {
	return func(c *Collector) {
		if size > 0 {
			c.batchSize = size
		}
		if interval > 0 {
			c.flushInterval = interval
		}
	}
}

func NewCollector(aggregator *Aggregator, bufferSize int, opts ...CollectorOption) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	c := &Collector{
		aggregator:    aggregator,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     100,
		flushInterval: 5 * time.Second,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the forwarding loop. Without a publisher it does nothing.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if c.publisher == nil {
			close(c.done)
			return
		}
		go c.run(ctx)
		c.logger.Info("analytics collector started",
			"buffer_size", cap(c.eventCh),
			"batch_size", c.batchSize,
			"flush_interval", c.flushInterval,
		)
	})
}

func (c *Collector) TrackSearch(e SearchEvent) {
	if c.aggregator != nil {
		c.aggregator.RecordSearch(e)
	}
	c.forward(kafka.Event{Key: e.Normalized, Value: e})
}

func (c *Collector) TrackIndex(e IndexEvent) {
	if c.aggregator != nil {
		c.aggregator.RecordIndex(e)
	}
	c.forward(kafka.Event{Key: string(e.Type), Value: e})
}

func (c *Collector) forward(ev kafka.Event) {
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- ev:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the loop after flushing what is buffered.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	c.Start(context.Background())
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				flush(context.WithoutCancel(ctx))
				return
			}
			batch = append(batch, ev)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case ev, ok := <-c.eventCh:
					if !ok {
						break drain
					}
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(drainCtx)
			cancel()
			return
		}
	}
}
