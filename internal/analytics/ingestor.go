package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/model"
)

// Ingestor drains the analytics topics into ClickHouse. It runs as a
// background task inside the service process; a dedicated consumer group
// lets multiple instances share the work.
type Ingestor struct {
	verifyConsumer *client.KafkaConsumer
	viewConsumer   *client.KafkaConsumer
	store          *Store
	logger         *zap.Logger
	wg             sync.WaitGroup
}

func NewIngestor(verifyConsumer, viewConsumer *client.KafkaConsumer, store *Store, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		verifyConsumer: verifyConsumer,
		viewConsumer:   viewConsumer,
		store:          store,
		logger:         logger,
	}
}

// Run starts both consumer loops and blocks until ctx is cancelled
func (i *Ingestor) Run(ctx context.Context) {
	i.wg.Add(2)
	go i.consumeVerifications(ctx)
	go i.consumeViews(ctx)
	i.wg.Wait()
}

func (i *Ingestor) consumeVerifications(ctx context.Context) {
	defer i.wg.Done()

	for {
		msg, err := i.verifyConsumer.Reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			i.logger.Warn("verification consumer read failed", zap.Error(err))
			continue
		}

		var event model.VerificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			i.logger.Warn("malformed verification event dropped", zap.Error(err))
			continue
		}

		i.withTimeout(ctx, func(ctx context.Context) error {
			return i.store.InsertVerificationEvent(ctx, &event)
		})
	}
}

func (i *Ingestor) consumeViews(ctx context.Context) {
	defer i.wg.Done()

	for {
		msg, err := i.viewConsumer.Reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			i.logger.Warn("view consumer read failed", zap.Error(err))
			continue
		}

		var event model.ArticleViewEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			i.logger.Warn("malformed view event dropped", zap.Error(err))
			continue
		}

		i.withTimeout(ctx, func(ctx context.Context) error {
			return i.store.InsertArticleView(ctx, &event)
		})
	}
}

func (i *Ingestor) withTimeout(ctx context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		i.logger.Error("analytics insert failed", zap.Error(err))
	}
}

func (i *Ingestor) Close() {
	if i.verifyConsumer != nil {
		_ = i.verifyConsumer.Close()
	}
	if i.viewConsumer != nil {
		_ = i.viewConsumer.Close()
	}
}
