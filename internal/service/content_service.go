package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blog-service/internal/analytics"
	"blog-service/internal/model"
	"blog-service/internal/repository/scylla"
	"blog-service/internal/search"
	"blog-service/internal/util"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrArticleNotFound  = errors.New("article not found")
	ErrEmptyPage        = errors.New("page out of range")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50

	hotArticleWindow = 7 * 24 * time.Hour
	hotArticleLimit  = 9
	searchResultSize = 20
)

// ContentService serves the category/article/comment surface. The search
// index and the analytics pipeline are optional collaborators; a nil value
// degrades the related feature instead of failing requests.
type ContentService struct {
	contentRepo scylla.ContentRepository
	producer    *analytics.Producer
	store       *analytics.Store
	index       *search.ArticleIndex
	logger      *zap.Logger
}

func NewContentService(
	contentRepo scylla.ContentRepository,
	producer *analytics.Producer,
	store *analytics.Store,
	index *search.ArticleIndex,
	logger *zap.Logger,
) *ContentService {
	return &ContentService{
		contentRepo: contentRepo,
		producer:    producer,
		store:       store,
		index:       index,
		logger:      logger,
	}
}

// CategoryPage is the article listing for one category.
type CategoryPage struct {
	Categories []*model.ArticleCategory `json:"categories"`
	Category   *model.ArticleCategory   `json:"category"`
	Articles   []*model.Article         `json:"articles"`
	PageNum    int                      `json:"page_num"`
	PageSize   int                      `json:"page_size"`
	TotalPage  int                      `json:"total_page"`
}

// ArticleDetail is an article with its surrounding page furniture.
type ArticleDetail struct {
	Article     *model.Article           `json:"article"`
	Categories  []*model.ArticleCategory `json:"categories"`
	HotArticles []*model.Article         `json:"hot_articles"`
	Comments    []*model.Comment         `json:"comments"`
	PageNum     int                      `json:"page_num"`
	PageSize    int                      `json:"page_size"`
	TotalPage   int                      `json:"total_page"`
}

type CreateArticleRequest struct {
	CategoryID string `json:"category_id"`
	Title      string `json:"title"`
	Tags       string `json:"tags"`
	Summary    string `json:"summary"`
	Content    string `json:"content"`
	CoverURL   string `json:"cover_url"`
}

func (s *ContentService) ListCategories(ctx context.Context) ([]*model.ArticleCategory, error) {
	return s.contentRepo.ListCategories()
}

// GetCategoryPage assembles the listing for one category. The independent
// reads run concurrently.
func (s *ContentService) GetCategoryPage(ctx context.Context, categoryID string, pageNum, pageSize int) (*CategoryPage, error) {
	pageNum, pageSize = clampPaging(pageNum, pageSize)

	page := &CategoryPage{PageNum: pageNum, PageSize: pageSize}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		categories, err := s.contentRepo.ListCategories()
		if err != nil {
			return err
		}
		page.Categories = categories
		return nil
	})
	g.Go(func() error {
		category, err := s.contentRepo.GetCategory(categoryID)
		if err != nil {
			if errors.Is(err, scylla.ErrNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}
		page.Category = category
		return nil
	})
	g.Go(func() error {
		articles, total, err := s.contentRepo.ListArticlesByCategory(categoryID, pageNum, pageSize)
		if err != nil {
			return err
		}
		page.Articles = articles
		page.TotalPage = totalPages(total, pageSize)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pageNum > page.TotalPage {
		return nil, ErrEmptyPage
	}
	return page, nil
}

// GetArticleDetail loads an article with its comment page, the category
// list and the current hot articles, and records the view.
func (s *ContentService) GetArticleDetail(ctx context.Context, articleID string, pageNum, pageSize int) (*ArticleDetail, error) {
	pageNum, pageSize = clampPaging(pageNum, pageSize)

	detail := &ArticleDetail{PageNum: pageNum, PageSize: pageSize}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		article, err := s.contentRepo.GetArticle(articleID)
		if err != nil {
			if errors.Is(err, scylla.ErrNotFound) {
				return ErrArticleNotFound
			}
			return err
		}
		detail.Article = article
		return nil
	})
	g.Go(func() error {
		categories, err := s.contentRepo.ListCategories()
		if err != nil {
			return err
		}
		detail.Categories = categories
		return nil
	})
	g.Go(func() error {
		comments, total, err := s.contentRepo.ListCommentsByArticle(articleID, pageNum, pageSize)
		if err != nil {
			return err
		}
		detail.Comments = comments
		detail.TotalPage = totalPages(total, pageSize)
		return nil
	})
	g.Go(func() error {
		hot, err := s.HotArticles(gctx)
		if err != nil {
			s.logger.Warn("failed to load hot articles", zap.Error(err))
			return nil
		}
		detail.HotArticles = hot
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pageNum > detail.TotalPage {
		return nil, ErrEmptyPage
	}

	s.recordView(ctx, articleID)
	return detail, nil
}

func (s *ContentService) recordView(ctx context.Context, articleID string) {
	if err := s.contentRepo.IncrementViews(articleID); err != nil {
		s.logger.Warn("failed to increment view counter",
			zap.String("article_id", articleID),
			zap.Error(err))
	}
	if s.producer != nil {
		s.producer.RecordArticleView(ctx, articleID)
	}
}

func (s *ContentService) CreateArticle(ctx context.Context, session *model.Session, req *CreateArticleRequest) (*model.Article, error) {
	if req.CategoryID == "" || req.Title == "" || req.Summary == "" || req.Content == "" {
		return nil, fmt.Errorf("%w: category, title, summary and content are required", ErrInvalidInput)
	}

	if _, err := s.contentRepo.GetCategory(req.CategoryID); err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	article := &model.Article{
		ArticleID:  uuid.New().String(),
		AuthorID:   session.UserID,
		AuthorName: session.Username,
		CategoryID: req.CategoryID,
		Title:      util.SanitizeInput(req.Title),
		Tags:       util.SanitizeInput(req.Tags),
		Summary:    util.SanitizeInput(req.Summary),
		Content:    req.Content,
		CoverURL:   req.CoverURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.contentRepo.CreateArticle(article); err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.IndexArticle(ctx, article); err != nil {
			s.logger.Warn("failed to index article",
				zap.String("article_id", article.ArticleID),
				zap.Error(err))
		}
	}
	return article, nil
}

func (s *ContentService) CreateComment(ctx context.Context, session *model.Session, articleID, content string) (*model.Comment, error) {
	content = util.SanitizeInput(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment content is required", ErrInvalidInput)
	}

	if _, err := s.contentRepo.GetArticle(articleID); err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}

	comment := &model.Comment{
		ArticleID: articleID,
		UserID:    session.UserID,
		Username:  session.Username,
		Content:   content,
	}
	if err := s.contentRepo.CreateComment(comment); err != nil {
		return nil, err
	}
	if err := s.contentRepo.IncrementComments(articleID); err != nil {
		s.logger.Warn("failed to increment comment counter",
			zap.String("article_id", articleID),
			zap.Error(err))
	}
	return comment, nil
}

// HotArticles returns the most viewed articles of the trailing week,
// ranked from the analytics store. Without the store it falls back to an
// empty list.
func (s *ContentService) HotArticles(ctx context.Context) ([]*model.Article, error) {
	if s.store == nil {
		return nil, nil
	}
	ids, err := s.store.HotArticleIDs(ctx, hotArticleWindow, hotArticleLimit)
	if err != nil {
		return nil, err
	}
	return s.fetchArticles(ctx, ids)
}

// SearchArticles resolves a full-text query via Elasticsearch and hydrates
// the hits from the primary store.
func (s *ContentService) SearchArticles(ctx context.Context, query string) ([]*model.Article, error) {
	if s.index == nil {
		return nil, nil
	}
	query = util.SanitizeInput(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	ids, err := s.index.SearchArticles(ctx, query, searchResultSize)
	if err != nil {
		return nil, err
	}
	return s.fetchArticles(ctx, ids)
}

func (s *ContentService) fetchArticles(ctx context.Context, ids []string) ([]*model.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	articles := make([]*model.Article, len(ids))
	g, _ := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			article, err := s.contentRepo.GetArticle(id)
			if err != nil {
				if errors.Is(err, scylla.ErrNotFound) {
					// Deleted since it was ranked/indexed; skip.
					return nil
				}
				return err
			}
			articles[i] = article
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := articles[:0]
	for _, a := range articles {
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func clampPaging(pageNum, pageSize int) (int, int) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return pageNum, pageSize
}

// totalPages never reports less than one page so that page one of an empty
// listing renders instead of erroring.
func totalPages(total, pageSize int) int {
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
