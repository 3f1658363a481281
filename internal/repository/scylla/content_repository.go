package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog-service/internal/model"
	"blog-service/internal/util"
)

// ContentRepository defines the interface for category, article and
// comment storage
type ContentRepository interface {
	CreateCategory(category *model.ArticleCategory) error
	ListCategories() ([]*model.ArticleCategory, error)
	GetCategory(categoryID string) (*model.ArticleCategory, error)

	CreateArticle(article *model.Article) error
	GetArticle(articleID string) (*model.Article, error)
	ListArticlesByCategory(categoryID string, pageNum, pageSize int) ([]*model.Article, int, error)

	CreateComment(comment *model.Comment) error
	ListCommentsByArticle(articleID string, pageNum, pageSize int) ([]*model.Comment, int, error)

	IncrementViews(articleID string) error
	IncrementComments(articleID string) error
}

type contentRepository struct {
	client *ScyllaClient
}

func NewContentRepository(client *ScyllaClient, logger *zap.Logger) ContentRepository {
	return &contentRepository{client: client}
}

func (r *contentRepository) CreateCategory(category *model.ArticleCategory) error {
	if category.CategoryID == "" {
		category.CategoryID = uuid.New().String()
	}
	category.CreatedAt = time.Now().UTC()

	query := r.client.Prepared.CreateCategory.Bind(
		category.CategoryID, category.Title, category.CreatedAt)
	if err := query.Exec(); err != nil {
		util.Error("Failed to create category",
			zap.String("title", category.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *contentRepository) ListCategories() ([]*model.ArticleCategory, error) {
	iter := r.client.Prepared.ListCategories.Iter()

	var categories []*model.ArticleCategory
	c := &model.ArticleCategory{}
	for iter.Scan(&c.CategoryID, &c.Title, &c.CreatedAt) {
		categories = append(categories, &model.ArticleCategory{
			CategoryID: c.CategoryID,
			Title:      c.Title,
			CreatedAt:  c.CreatedAt,
		})
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *contentRepository) GetCategory(categoryID string) (*model.ArticleCategory, error) {
	category := &model.ArticleCategory{}

	query := r.client.Prepared.GetCategory.Bind(categoryID)
	err := r.client.ScanWithRetry(query,
		&category.CategoryID, &category.Title, &category.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("%w: category %s", ErrNotFound, categoryID)
		}
		util.Error("Failed to get category",
			zap.String("category_id", categoryID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (r *contentRepository) CreateArticle(article *model.Article) error {
	if article.ArticleID == "" {
		article.ArticleID = uuid.New().String()
	}
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	// Both article tables are written together so the per-category listing
	// never references a missing article
	batch := r.client.Session.NewBatch(gocql.LoggedBatch)

	batch.Query(r.client.Prepared.CreateArticle.Statement(),
		article.ArticleID, article.AuthorID, article.AuthorName,
		article.CategoryID, article.Title, article.Tags, article.Summary,
		article.Content, article.CoverURL, article.CreatedAt, article.UpdatedAt)

	batch.Query(r.client.Prepared.CreateArticleByCategory.Statement(),
		article.CategoryID, article.CreatedAt, article.ArticleID,
		article.AuthorID, article.AuthorName, article.Title, article.Tags,
		article.Summary, article.CoverURL)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create article",
			zap.String("article_id", article.ArticleID),
			zap.Error(err))
		return fmt.Errorf("failed to create article: %w", err)
	}

	util.Info("Article created",
		zap.String("article_id", article.ArticleID),
		zap.String("category_id", article.CategoryID))
	return nil
}

func (r *contentRepository) GetArticle(articleID string) (*model.Article, error) {
	article := &model.Article{}

	query := r.client.Prepared.GetArticle.Bind(articleID)
	err := r.client.ScanWithRetry(query,
		&article.ArticleID, &article.AuthorID, &article.AuthorName,
		&article.CategoryID, &article.Title, &article.Tags, &article.Summary,
		&article.Content, &article.CoverURL, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("%w: article %s", ErrNotFound, articleID)
		}
		util.Error("Failed to get article",
			zap.String("article_id", articleID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	r.attachCounts(article)
	return article, nil
}

// ListArticlesByCategory returns one page of a category's articles, newest
// first, plus the total article count for page math. Offset pagination is
// emulated by skipping over the clustered iterator.
func (r *contentRepository) ListArticlesByCategory(categoryID string, pageNum, pageSize int) ([]*model.Article, int, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int
	countQuery := r.client.Prepared.CountArticlesInCategory.Bind(categoryID)
	if err := r.client.ScanWithRetry(countQuery, &total); err != nil {
		util.Error("Failed to count articles",
			zap.String("category_id", categoryID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	iter := r.client.Prepared.ListArticlesByCategory.Bind(categoryID).Iter()

	skip := (pageNum - 1) * pageSize
	var articles []*model.Article
	a := &model.Article{}
	for iter.Scan(&a.ArticleID, &a.AuthorID, &a.AuthorName, &a.Title,
		&a.Tags, &a.Summary, &a.CoverURL, &a.CreatedAt) {
		if skip > 0 {
			skip--
			continue
		}
		if len(articles) == pageSize {
			break
		}
		article := &model.Article{
			ArticleID:  a.ArticleID,
			AuthorID:   a.AuthorID,
			AuthorName: a.AuthorName,
			CategoryID: categoryID,
			Title:      a.Title,
			Tags:       a.Tags,
			Summary:    a.Summary,
			CoverURL:   a.CoverURL,
			CreatedAt:  a.CreatedAt,
		}
		r.attachCounts(article)
		articles = append(articles, article)
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list articles",
			zap.String("category_id", categoryID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}

	return articles, total, nil
}

func (r *contentRepository) CreateComment(comment *model.Comment) error {
	commentID := gocql.TimeUUID()
	comment.CommentID = commentID.String()
	comment.CreatedAt = commentID.Time().UTC()

	query := r.client.Prepared.CreateComment.Bind(
		comment.ArticleID, commentID, comment.UserID, comment.Username,
		comment.Content)
	if err := query.Exec(); err != nil {
		util.Error("Failed to create comment",
			zap.String("article_id", comment.ArticleID),
			zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *contentRepository) ListCommentsByArticle(articleID string, pageNum, pageSize int) ([]*model.Comment, int, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int
	countQuery := r.client.Prepared.CountCommentsByArticle.Bind(articleID)
	if err := r.client.ScanWithRetry(countQuery, &total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	iter := r.client.Prepared.ListCommentsByArticle.Bind(articleID).Iter()

	skip := (pageNum - 1) * pageSize
	var comments []*model.Comment
	var commentID gocql.UUID
	var userID, username, content string
	for iter.Scan(&commentID, &userID, &username, &content) {
		if skip > 0 {
			skip--
			continue
		}
		if len(comments) == pageSize {
			break
		}
		comments = append(comments, &model.Comment{
			CommentID: commentID.String(),
			ArticleID: articleID,
			UserID:    userID,
			Username:  username,
			Content:   content,
			CreatedAt: commentID.Time().UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list comments",
			zap.String("article_id", articleID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, total, nil
}

func (r *contentRepository) IncrementViews(articleID string) error {
	if err := r.client.Prepared.IncrementViews.Bind(articleID).Exec(); err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

func (r *contentRepository) IncrementComments(articleID string) error {
	if err := r.client.Prepared.IncrementComments.Bind(articleID).Exec(); err != nil {
		return fmt.Errorf("failed to increment comment count: %w", err)
	}
	return nil
}

// attachCounts fills in the counter columns; a missing counter row means
// zero views and zero comments
func (r *contentRepository) attachCounts(article *model.Article) {
	var views, comments int64
	query := r.client.Prepared.GetArticleCounts.Bind(article.ArticleID)
	if err := r.client.ScanWithRetry(query, &views, &comments); err != nil {
		if err != gocql.ErrNotFound {
			util.Warn("Failed to read article counters",
				zap.String("article_id", article.ArticleID),
				zap.Error(err))
		}
		return
	}
	article.TotalViews = views
	article.CommentCounts = comments
}
