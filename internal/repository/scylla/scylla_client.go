package scylla

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"blog-service/internal/config"
	"blog-service/internal/util"
)

// PreparedStatements holds the statements used by the repositories
type PreparedStatements struct {
	CreateUser         *gocql.Query
	CreateMobileToUser *gocql.Query
	GetUserByID        *gocql.Query
	GetUserByMobile    *gocql.Query
	UpdateUserProfile  *gocql.Query
	UpdateUserPassword *gocql.Query
	UpdateLastLogin    *gocql.Query

	CreateCategory *gocql.Query
	ListCategories *gocql.Query
	GetCategory    *gocql.Query

	CreateArticle           *gocql.Query
	CreateArticleByCategory *gocql.Query
	GetArticle              *gocql.Query
	ListArticlesByCategory  *gocql.Query
	CountArticlesInCategory *gocql.Query

	CreateComment          *gocql.Query
	ListCommentsByArticle  *gocql.Query
	CountCommentsByArticle *gocql.Query

	IncrementViews    *gocql.Query
	IncrementComments *gocql.Query
	GetArticleCounts  *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateUser = s.Session.Query(`
        INSERT INTO users (
            user_bucket, user_id, username, mobile_hash, mobile_encrypted,
            mobile_key_id, password_hash, bio, avatar_url, is_active,
            last_login_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateMobileToUser = s.Session.Query(`
        INSERT INTO mobile_to_user (mobile_hash, user_bucket, user_id, created_at)
        VALUES (?, ?, ?, ?)`)

	prepared.GetUserByID = s.Session.Query(`
        SELECT user_bucket, user_id, username, mobile_hash, mobile_encrypted,
            mobile_key_id, password_hash, bio, avatar_url, is_active,
            last_login_at, created_at, updated_at
        FROM users WHERE user_bucket = ? AND user_id = ?`)

	prepared.GetUserByMobile = s.Session.Query(`
        SELECT user_bucket, user_id FROM mobile_to_user WHERE mobile_hash = ?`)

	prepared.UpdateUserProfile = s.Session.Query(`
        UPDATE users SET username = ?, bio = ?, avatar_url = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.UpdateUserPassword = s.Session.Query(`
        UPDATE users SET password_hash = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.UpdateLastLogin = s.Session.Query(`
        UPDATE users SET last_login_at = ? WHERE user_bucket = ? AND user_id = ?`)

	prepared.CreateCategory = s.Session.Query(`
        INSERT INTO categories (bucket, category_id, title, created_at)
        VALUES (0, ?, ?, ?)`)

	prepared.ListCategories = s.Session.Query(`
        SELECT category_id, title, created_at FROM categories WHERE bucket = 0`)

	prepared.GetCategory = s.Session.Query(`
        SELECT category_id, title, created_at FROM categories
        WHERE bucket = 0 AND category_id = ?`)

	prepared.CreateArticle = s.Session.Query(`
        INSERT INTO articles (
            article_id, author_id, author_name, category_id, title, tags,
            summary, content, cover_url, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateArticleByCategory = s.Session.Query(`
        INSERT INTO articles_by_category (
            category_id, created_at, article_id, author_id, author_name,
            title, tags, summary, cover_url
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetArticle = s.Session.Query(`
        SELECT article_id, author_id, author_name, category_id, title, tags,
            summary, content, cover_url, created_at, updated_at
        FROM articles WHERE article_id = ?`)

	prepared.ListArticlesByCategory = s.Session.Query(`
        SELECT article_id, author_id, author_name, title, tags, summary,
            cover_url, created_at
        FROM articles_by_category WHERE category_id = ?`)

	prepared.CountArticlesInCategory = s.Session.Query(`
        SELECT COUNT(*) FROM articles_by_category WHERE category_id = ?`)

	prepared.CreateComment = s.Session.Query(`
        INSERT INTO comments_by_article (article_id, comment_id, user_id, username, content)
        VALUES (?, ?, ?, ?, ?)`)

	prepared.ListCommentsByArticle = s.Session.Query(`
        SELECT comment_id, user_id, username, content
        FROM comments_by_article WHERE article_id = ?`)

	prepared.CountCommentsByArticle = s.Session.Query(`
        SELECT COUNT(*) FROM comments_by_article WHERE article_id = ?`)

	prepared.IncrementViews = s.Session.Query(`
        UPDATE article_counters SET total_views = total_views + 1
        WHERE article_id = ?`)

	prepared.IncrementComments = s.Session.Query(`
        UPDATE article_counters SET comment_counts = comment_counts + 1
        WHERE article_id = ?`)

	prepared.GetArticleCounts = s.Session.Query(`
        SELECT total_views, comment_counts FROM article_counters
        WHERE article_id = ?`)

	s.Prepared = prepared
	s.isPrepared = true
	return nil
}

// ExecuteBatch runs a logged batch with a single retry on timeout
func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	err := s.Session.ExecuteBatch(batch)
	if err == gocql.ErrTimeoutNoResponse {
		err = s.Session.ExecuteBatch(batch)
	}
	return err
}

// ScanWithRetry scans a single row, retrying once on timeout
func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	err := query.Scan(dest...)
	if err == gocql.ErrTimeoutNoResponse {
		err = query.Scan(dest...)
	}
	return err
}

// HealthCheck verifies the session can reach the cluster
func (s *ScyllaClient) HealthCheck() error {
	if s.Session == nil || s.Session.Closed() {
		return gocql.ErrNoConnections
	}
	return s.Session.Query("SELECT now() FROM system.local").Exec()
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB session closed")
	}
}
