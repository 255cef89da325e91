// Package worker ships audit outbox entries to Kafka.
//
// The relay polls the outbox, produces each pending entry keyed by its
// aggregate ID, and stamps the entries the broker acknowledged. Delivery is
// at-least-once: an entry produced but not stamped is sent again on the next
// pass, so consumers dedupe on the payload ID.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "eap/pkg/platform/audit"
)

// Outbox is the relay's view of the audit store.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
	clock     func() time.Time
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRelay(outbox Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run flushes the outbox every interval until ctx is cancelled. A full batch
// is followed immediately by another pass.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "audit outbox flush failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many entries were stamped.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	entries, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]*kgo.Record, len(entries))
	ids := make(map[*kgo.Record]string, len(entries))
	for i, e := range entries {
		rec := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "aggregate_type", Value: []byte(e.AggregateType)},
			},
			Timestamp: e.CreatedAt,
		}
		records[i] = rec
		ids[rec] = e.ID
	}

	var (
		delivered []string
		firstErr  error
	)
	for _, res := range r.producer.ProduceSync(ctx, records...) {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if entryID, ok := ids[res.Record]; ok {
			delivered = append(delivered, entryID)
		}
	}
	r.metrics.observe(len(delivered), len(entries)-len(delivered))

	if len(delivered) > 0 {
		if err := r.outbox.MarkPublished(ctx, delivered, r.clock()); err != nil {
			return 0, err
		}
	}
	if firstErr != nil {
		return len(delivered), fmt.Errorf("produce audit events: %w", firstErr)
	}
	return len(delivered), nil
}

// EnsureTopic creates topic when the broker does not have it yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}
