package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/model"
	"blog-service/internal/util"
)

// ArticleIndex indexes published articles and serves full-text search
// over title, summary, tags and content
type ArticleIndex struct {
	es     *client.ESClient
	index  string
	logger *zap.Logger
}

func NewArticleIndex(es *client.ESClient, index string, logger *zap.Logger) *ArticleIndex {
	return &ArticleIndex{
		es:     es,
		index:  index,
		logger: logger,
	}
}

type articleDocument struct {
	ArticleID  string `json:"article_id"`
	AuthorName string `json:"author_name"`
	CategoryID string `json:"category_id"`
	Title      string `json:"title"`
	Tags       string `json:"tags"`
	Summary    string `json:"summary"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// IndexArticle upserts an article document. Indexing failures are
// surfaced to the caller but publishing an article must not depend on
// them; the service logs and continues.
func (a *ArticleIndex) IndexArticle(ctx context.Context, article *model.Article) error {
	doc := articleDocument{
		ArticleID:  article.ArticleID,
		AuthorName: article.AuthorName,
		CategoryID: article.CategoryID,
		Title:      article.Title,
		Tags:       article.Tags,
		Summary:    article.Summary,
		Content:    article.Content,
		CreatedAt:  article.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal article document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: article.ArticleID,
		Body:       bytes.NewReader(data),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, a.es.Client)
	if err != nil {
		return fmt.Errorf("failed to index article: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch rejected article %s: %s", article.ArticleID, string(body))
	}

	util.Debug("Article indexed",
		zap.String("article_id", article.ArticleID),
		zap.String("index", a.index))
	return nil
}

// SearchArticles runs a multi-field match query and returns matching
// article ids in relevance order
func (a *ArticleIndex) SearchArticles(ctx context.Context, query string, size int) ([]string, error) {
	if size <= 0 {
		size = 10
	}

	body := map[string]interface{}{
		"size":    size,
		"_source": []string{"article_id"},
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "tags^2", "summary^2", "content"},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := a.es.Client.Search(
		a.es.Client.Search.WithContext(ctx),
		a.es.Client.Search.WithIndex(a.index),
		a.es.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		if strings.Contains(string(raw), "index_not_found_exception") {
			return nil, nil
		}
		return nil, fmt.Errorf("search returned error: %s", string(raw))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source articleDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.Source.ArticleID)
	}
	return ids, nil
}
