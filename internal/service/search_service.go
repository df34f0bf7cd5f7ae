package service

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"

	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/es"
)

// SearchService 为运维提供对话检索。
type SearchService interface {
	SearchTranscripts(ctx context.Context, q es.SearchQuery) ([]model.TranscriptHit, error)
}

type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewSearchService 创建一个新的 SearchService 实例。esClient 为 nil 时检索不可用。
func NewSearchService(esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{esClient: esClient, indexName: indexName}
}

func (s *searchService) SearchTranscripts(ctx context.Context, q es.SearchQuery) ([]model.TranscriptHit, error) {
	if s.esClient == nil {
		return nil, ErrSearchUnavailable
	}
	return es.SearchTranscripts(ctx, s.esClient, s.indexName, q)
}
