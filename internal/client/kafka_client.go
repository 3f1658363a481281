package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"blog-service/internal/config"
	"blog-service/internal/util"
)

type KafkaProducer struct {
	Writer *kafka.Writer
	config *config.KafkaConfig
	logger *zap.Logger
}

type KafkaConsumer struct {
	Reader *kafka.Reader
	config *config.KafkaConfig
	logger *zap.Logger
}

func NewKafkaProducer(cfg *config.Config, logger *zap.Logger) (*KafkaProducer, error) {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1048576, // 1MB
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)),
				)
			}
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Connectivity probe; a missing topic is tolerated here
	err := writer.WriteMessages(ctx, kafka.Message{
		Topic: "health-check",
		Key:   []byte("probe"),
		Value: []byte("health check message"),
	})
	if err != nil && !isConnectivityError(err) {
		return nil, fmt.Errorf("failed to connect to Kafka brokers: %w", err)
	}

	util.Info("Kafka producer initialized",
		zap.Strings("brokers", kafkaConfig.Brokers))

	return &KafkaProducer{
		Writer: writer,
		config: &kafkaConfig,
		logger: logger,
	}, nil
}

func NewKafkaConsumer(cfg *config.Config, topic, groupID string, logger *zap.Logger) *KafkaConsumer {
	kafkaConfig := cfg.Kafka

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kafkaConfig.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	return &KafkaConsumer{
		Reader: reader,
		config: &kafkaConfig,
		logger: logger,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s failed: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.Writer != nil {
		if err := p.Writer.Close(); err != nil {
			p.logger.Error("failed to close kafka writer", zap.Error(err))
			return err
		}
		util.Info("Kafka producer closed")
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	if c.Reader != nil {
		return c.Reader.Close()
	}
	return nil
}

// isConnectivityError distinguishes "broker is up but topic is missing"
// class errors from real connection failures
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Unknown Topic") ||
		strings.Contains(msg, "unknown topic") ||
		strings.Contains(msg, "Leader Not Available") ||
		strings.Contains(msg, "context deadline exceeded")
}
