package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/model"
	"blog-service/internal/util"
)

// Store persists analytics events in ClickHouse and answers the
// aggregation queries built on them
type Store struct {
	ch *client.ClickHouseClient
}

func NewStore(ch *client.ClickHouseClient) *Store {
	return &Store{ch: ch}
}

// EnsureSchema creates the event tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS verification_events (
			event_id     String,
			kind         LowCardinality(String),
			subject      String,
			outcome      LowCardinality(String),
			event_bucket Int32,
			occurred_at  DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (kind, occurred_at)`,

		`CREATE TABLE IF NOT EXISTS article_views (
			event_id    String,
			article_id  String,
			occurred_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (article_id, occurred_at)`,
	}

	for _, stmt := range ddl {
		if err := s.ch.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure analytics schema: %w", err)
		}
	}

	util.Info("Analytics schema ensured")
	return nil
}

func (s *Store) InsertVerificationEvent(ctx context.Context, e *model.VerificationEvent) error {
	err := s.ch.Conn().Exec(ctx,
		`INSERT INTO verification_events
			(event_id, kind, subject, outcome, event_bucket, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Kind, e.Subject, e.Outcome, int32(e.EventBucket), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert verification event: %w", err)
	}
	return nil
}

func (s *Store) InsertArticleView(ctx context.Context, e *model.ArticleViewEvent) error {
	err := s.ch.Conn().Exec(ctx,
		`INSERT INTO article_views (event_id, article_id, occurred_at)
		VALUES (?, ?, ?)`,
		e.EventID, e.ArticleID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert article view: %w", err)
	}
	return nil
}

// HotArticleIDs returns the most-viewed article ids over the trailing
// window, ordered by view count descending
func (s *Store) HotArticleIDs(ctx context.Context, window time.Duration, limit int) ([]string, error) {
	since := time.Now().UTC().Add(-window)

	rows, err := s.ch.Conn().Query(ctx,
		`SELECT article_id, count() AS views
		FROM article_views
		WHERE occurred_at >= ?
		GROUP BY article_id
		ORDER BY views DESC
		LIMIT ?`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hot articles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var views uint64
		if err := rows.Scan(&id, &views); err != nil {
			return nil, fmt.Errorf("failed to scan hot article row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hot article query failed: %w", err)
	}
	return ids, nil
}

// VerificationFailureCount reports recent non-ok verification outcomes for
// a subject, used for operational dashboards
func (s *Store) VerificationFailureCount(ctx context.Context, subject string, window time.Duration) (uint64, error) {
	since := time.Now().UTC().Add(-window)

	row := s.ch.Conn().QueryRow(ctx,
		`SELECT count() FROM verification_events
		WHERE subject = ? AND outcome != 'ok' AND occurred_at >= ?`,
		subject, since)

	var count uint64
	if err := row.Scan(&count); err != nil {
		util.Error("Failed to count verification failures", zap.Error(err))
		return 0, fmt.Errorf("failed to count verification failures: %w", err)
	}
	return count, nil
}
