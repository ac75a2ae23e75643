package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// MessageWriter is the subset of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Recorder interface {
	EventPublished()
	EventFailed()
}

type nopRecorder struct{}

func (nopRecorder) EventPublished() {}
func (nopRecorder) EventFailed()    {}

// OutboxPoller relays committed outbox rows to Kafka. Delivery is at least
// once: a row is marked processed only after the broker accepted it.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	repo      repository.OutboxStore
	writer    MessageWriter
	breaker   *gobreaker.CircuitBreaker[struct{}]
	recorder  Recorder
	log       zerolog.Logger
}

type Option func(*OutboxPoller)

func WithInterval(d time.Duration) Option {
	return func(p *OutboxPoller) { p.eventTick = d }
}

func WithBatchSize(n int) Option {
	return func(p *OutboxPoller) { p.batchSize = n }
}

func WithRecorder(r Recorder) Option {
	return func(p *OutboxPoller) { p.recorder = r }
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(repo repository.OutboxStore, writer MessageWriter, log zerolog.Logger, opts ...Option) *OutboxPoller {
	p := &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    writer,
		recorder:  nopRecorder{},
		log:       log.With().Str("component", "outbox").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-outbox",
		MaxRequests: 1,
		Timeout:     10 * p.eventTick,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})
	return p
}

func (p *OutboxPoller) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.eventTick).Msg("outbox poller started")
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			p.log.Info().Msg("outbox poller stopped")
			return
		}
	}
}

// processUnpublishedEvents publishes one batch and returns how many events
// were delivered and marked.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.publishToKafka(ctx, event)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// broker is down, keep the rest of the batch for later
			p.log.Debug().Int("pending", len(events)-published).Msg("publishing paused by circuit breaker")
			return published
		}
		if err != nil {
			p.recorder.EventFailed()
			p.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			continue
		}
		p.recorder.EventPublished()
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
