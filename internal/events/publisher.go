package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"otp-service/internal/client"
	"otp-service/internal/config"
	"otp-service/internal/model"
	"otp-service/internal/util"
)

const publishTimeout = 3 * time.Second

// Publisher fans security events out to Kafka, Elasticsearch and
// ClickHouse. Every sink is optional and best-effort: a slow or down
// backend is logged, never surfaced to the request path. Implements
// model.EventSink.
type Publisher struct {
	kafka      *client.KafkaProducer
	es         *client.ESClient
	clickhouse *client.ClickHouseClient
	config     *config.Config
}

func NewPublisher(cfg *config.Config, kafka *client.KafkaProducer, es *client.ESClient, ch *client.ClickHouseClient) *Publisher {
	return &Publisher{
		kafka:      kafka,
		es:         es,
		clickhouse: ch,
		config:     cfg,
	}
}

// Publish delivers one event to all configured sinks in parallel.
// Detaches from the request context so cancellation of the HTTP request
// does not drop events already accepted.
func (p *Publisher) Publish(ctx context.Context, event *model.SecurityEvent) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal security event",
			zap.String("event_type", event.Type),
			zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	g, gctx := errgroup.WithContext(pubCtx)

	if p.kafka != nil {
		g.Go(func() error {
			// Keyed by target hash so events for one target stay ordered
			if err := p.kafka.Produce(gctx, []byte(event.TargetHash), payload, map[string]string{
				"event_type": event.Type,
			}); err != nil {
				util.Warn("Kafka event publish failed",
					zap.String("event_id", event.EventID),
					zap.Error(err))
			}
			return nil
		})
	}

	if p.es != nil {
		g.Go(func() error {
			if err := p.es.IndexDocument(gctx, p.config.Elasticsearch.EventIndex, event.EventID, event); err != nil {
				util.Warn("Elasticsearch event index failed",
					zap.String("event_id", event.EventID),
					zap.Error(err))
			}
			return nil
		})
	}

	if p.clickhouse != nil {
		g.Go(func() error {
			if err := p.insertAnalyticsRow(gctx, event); err != nil {
				util.Warn("ClickHouse event insert failed",
					zap.String("event_id", event.EventID),
					zap.Error(err))
			}
			return nil
		})
	}

	go func() {
		defer cancel()
		_ = g.Wait()
	}()
}

func (p *Publisher) insertAnalyticsRow(ctx context.Context, event *model.SecurityEvent) error {
	return p.clickhouse.Exec(ctx, `
        INSERT INTO otp_events (
            event_id, event_type, target_hash, channel, outcome,
            attempts, provider, occurred_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID,
		event.Type,
		event.TargetHash,
		event.Channel.String(),
		event.Outcome,
		uint8(event.Attempts),
		event.Provider,
		event.OccurredAt,
	)
}
