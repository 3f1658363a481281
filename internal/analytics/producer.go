package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog-service/internal/bucketing"
	"blog-service/internal/client"
	"blog-service/internal/model"
	"blog-service/internal/util"
)

// Producer publishes analytics events to Kafka. Publishing is best-effort:
// a broker outage is logged and never propagated into the request path.
type Producer struct {
	kafka       *client.KafkaProducer
	buckets     *bucketing.Manager
	verifyTopic string
	viewTopic   string
	logger      *zap.Logger
}

func NewProducer(kafka *client.KafkaProducer, buckets *bucketing.Manager,
	verifyTopic, viewTopic string, logger *zap.Logger) *Producer {
	return &Producer{
		kafka:       kafka,
		buckets:     buckets,
		verifyTopic: verifyTopic,
		viewTopic:   viewTopic,
		logger:      logger,
	}
}

// RecordVerification implements verification.Auditor
func (p *Producer) RecordVerification(ctx context.Context, kind, subject, outcome string) {
	event := model.VerificationEvent{
		EventID:     uuid.New().String(),
		Kind:        kind,
		Subject:     subject,
		Outcome:     outcome,
		EventBucket: p.buckets.EventBucket(subject),
		OccurredAt:  time.Now().UTC(),
	}
	p.publish(ctx, p.verifyTopic, subject, event)
}

// RecordArticleView publishes a view event for hot-article ranking
func (p *Producer) RecordArticleView(ctx context.Context, articleID string) {
	event := model.ArticleViewEvent{
		EventID:    uuid.New().String(),
		ArticleID:  articleID,
		OccurredAt: time.Now().UTC(),
	}
	p.publish(ctx, p.viewTopic, articleID, event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal analytics event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.kafka.Publish(ctx, topic, []byte(key), data); err != nil {
		util.Warn("analytics event dropped",
			zap.String("topic", topic),
			zap.Error(err))
	}
}
