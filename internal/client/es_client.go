package client

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"blog-service/internal/config"
	"blog-service/internal/util"
)

type ESClient struct {
	Client *elasticsearch.Client
	config *config.ElasticsearchConfig
	logger *zap.Logger
}

func NewElasticsearchClient(cfg *config.Config, logger *zap.Logger) (*ESClient, error) {
	esConfig := cfg.Elasticsearch

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.IsDevelopment(), // Skip verify in dev only
	}

	transport := &http.Transport{
		TLSClientConfig: tlsConfig,
	}

	elasticConfig := elasticsearch.Config{
		Addresses: []string{esConfig.URL},
		Username:  esConfig.Username,
		Password:  esConfig.Password,
		Transport: transport,
	}

	client, err := elasticsearch.NewClient(elasticConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	esClient := &ESClient{
		Client: client,
		config: &esConfig,
		logger: util.Get(),
	}

	if err := esClient.HealthCheck(); err != nil {
		return nil, fmt.Errorf("elasticsearch connection test failed: %w", err)
	}

	util.Info("Elasticsearch client initialized",
		zap.String("url", esConfig.URL),
		zap.String("article_index", esConfig.ArticleIndex))

	return esClient, nil
}

func (c *ESClient) HealthCheck() error {
	res, err := c.Client.Info()
	if err != nil {
		return fmt.Errorf("elasticsearch info request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch returned error: %s", string(body))
	}
	return nil
}
