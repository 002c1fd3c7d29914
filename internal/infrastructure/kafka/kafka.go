package kafka

import (
	"context"
	"fmt"
	"time"

	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer wraps kgo.Client for producing messages
type Producer struct {
	*kgo.Client
	tracer trace.Tracer
	topic  string
}

// Consumer wraps kgo.Client for consuming messages
type Consumer struct {
	*kgo.Client
	tracer trace.Tracer
}

// newKotel builds the franz-go OTel plugin on the application's providers
func newKotel(tel *telemetry.Telemetry) *kotel.Kotel {
	var opts []kotel.Opt
	if tel.TracerProvider != nil {
		opts = append(opts, kotel.WithTracer(kotel.NewTracer(
			kotel.TracerProvider(tel.TracerProvider),
			kotel.TracerPropagator(otel.GetTextMapPropagator()),
		)))
	}
	if tel.MeterProvider != nil {
		opts = append(opts, kotel.WithMeter(kotel.NewMeter(
			kotel.MeterProvider(tel.MeterProvider),
		)))
	}
	return kotel.NewKotel(opts...)
}

func producerOpts(cfg config.KafkaConfig) []kgo.Opt {
	return []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchMaxBytes(1048576), // 1MB
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.RequestTimeoutOverhead(10 * time.Second),
		kgo.ConnIdleTimeout(time.Duration(cfg.ConnIdleTime) * time.Second),
		kgo.DialTimeout(time.Duration(cfg.DialTimeout) * time.Second),
	}
}

func consumerOpts(cfg config.KafkaConfig, groupID string) []kgo.Opt {
	return []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.FetchMaxBytes(52428800), // 50MB
		kgo.FetchMinBytes(1),
		kgo.FetchMaxWait(500 * time.Millisecond),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.RebalanceTimeout(30 * time.Second),
		kgo.ConnIdleTimeout(time.Duration(cfg.ConnIdleTime) * time.Second),
		kgo.DialTimeout(time.Duration(cfg.DialTimeout) * time.Second),
	}
}

// NewProducer creates a new Kafka producer writing to cfg.Topic by default
func NewProducer(cfg config.KafkaConfig, tel *telemetry.Telemetry) (*Producer, error) {
	opts := append(producerOpts(cfg), kgo.WithHooks(newKotel(tel).Hooks()...))

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	telemetry.Log(context.Background(), telemetry.LevelInfo, "Successfully created Kafka producer", nil,
		attribute.StringSlice("kafka.brokers", cfg.Brokers),
		attribute.String("kafka.topic", cfg.Topic),
	)

	return &Producer{
		Client: client,
		tracer: tel.Tracer,
		topic:  cfg.Topic,
	}, nil
}

// NewConsumer creates a new Kafka consumer in the given group
func NewConsumer(cfg config.KafkaConfig, groupID string, tel *telemetry.Telemetry) (*Consumer, error) {
	opts := append(consumerOpts(cfg, groupID), kgo.WithHooks(newKotel(tel).Hooks()...))

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	telemetry.Log(context.Background(), telemetry.LevelInfo, "Successfully created Kafka consumer", nil,
		attribute.StringSlice("kafka.brokers", cfg.Brokers),
		attribute.String("kafka.topic", cfg.Topic),
		attribute.String("kafka.consumer_group", groupID),
	)

	return &Consumer{
		Client: client,
		tracer: tel.Tracer,
	}, nil
}

// ProduceWithTracing synchronously produces record, defaulting its topic
func (p *Producer) ProduceWithTracing(ctx context.Context, record *kgo.Record) error {
	if record.Topic == "" {
		record.Topic = p.topic
	}

	ctx, span := p.tracer.Start(ctx, "kafka.produce")
	defer span.End()

	span.SetAttributes(
		attribute.String("kafka.topic", record.Topic),
		attribute.String("kafka.operation", "produce"),
		attribute.Int("kafka.message_size", len(record.Value)),
	)

	if err := p.ProduceSync(ctx, record).FirstErr(); err != nil {
		span.SetAttributes(attribute.Bool("kafka.error", true))
		return fmt.Errorf("failed to produce message: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("kafka.success", true),
		attribute.Int("kafka.partition", int(record.Partition)),
		attribute.Int64("kafka.offset", record.Offset),
	)
	telemetry.Log(ctx, telemetry.LevelInfo, "Message produced successfully", nil,
		attribute.String("kafka.topic", record.Topic),
		attribute.Int("kafka.message_size", len(record.Value)),
	)

	return nil
}

// ConsumeWithTracing polls until ctx is done or the client is closed,
// calling handler for each record. Handler errors are logged and the record
// is skipped.
func (c *Consumer) ConsumeWithTracing(ctx context.Context, handler func(ctx context.Context, record *kgo.Record) error) error {
	for {
		fetches := c.PollFetches(ctx)

		if fetches.IsClientClosed() {
			telemetry.Log(ctx, telemetry.LevelInfo, "Kafka client closed, consumer stopping", nil)
			return nil
		}
		if ctx.Err() != nil {
			telemetry.Log(ctx, telemetry.LevelInfo, "Kafka consumer shutting down", nil)
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			telemetry.Log(ctx, telemetry.LevelWarn, "Kafka fetch error", err,
				attribute.String("kafka.topic", topic),
				attribute.Int("kafka.partition", int(partition)),
			)
		})

		var processedCount int
		fetches.EachRecord(func(record *kgo.Record) {
			parent := ctx
			if record.Context != nil {
				parent = record.Context
			}
			recordCtx, recordSpan := c.tracer.Start(parent, "kafka.process_record")
			recordSpan.SetAttributes(
				attribute.String("kafka.topic", record.Topic),
				attribute.Int64("kafka.offset", record.Offset),
				attribute.Int("kafka.partition", int(record.Partition)),
			)

			if err := handler(recordCtx, record); err != nil {
				recordSpan.SetAttributes(attribute.Bool("kafka.processing_error", true))
				telemetry.Log(recordCtx, telemetry.LevelWarn, "Kafka record handler failed", err,
					attribute.String("kafka.topic", record.Topic),
					attribute.Int64("kafka.offset", record.Offset),
				)
			} else {
				processedCount++
			}

			recordSpan.End()
		})

		if processedCount > 0 {
			telemetry.Log(ctx, telemetry.LevelInfo, "Processed Kafka messages", nil,
				attribute.Int("kafka.processed_count", processedCount),
			)
		}
	}
}

// HealthCheck pings the cluster
func (p *Producer) HealthCheck(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "kafka.health_check")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		span.SetAttributes(attribute.Bool("kafka.healthy", false))
		return fmt.Errorf("kafka health check failed: %w", err)
	}

	span.SetAttributes(attribute.Bool("kafka.healthy", true))
	return nil
}

// Close flushes pending records and closes the Kafka client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Flush(ctx)
	p.Client.Close()
}

// Close closes the Kafka client
func (c *Consumer) Close() {
	c.Client.Close()
}
