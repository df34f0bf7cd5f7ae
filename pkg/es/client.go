// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/log"
)

// transcriptMapping 是对话索引的映射。content 使用标准分词器，其余字段用于过滤。
const transcriptMapping = `{
	"mappings": {
		"properties": {
			"message_id": { "type": "long" },
			"session_id": { "type": "keyword" },
			"pet_id": { "type": "keyword" },
			"pet_name": { "type": "keyword" },
			"sender": { "type": "keyword" },
			"content": { "type": "text", "analyzer": "standard" },
			"created_at": { "type": "date", "format": "yyyy-MM-dd HH:mm:ss||strict_date_optional_time" }
		}
	}
}`

// NewClient 创建 Elasticsearch 客户端并确保对话索引存在。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := CreateIndexIfNotExists(context.Background(), client, esCfg.IndexName); err != nil {
		return nil, err
	}
	return client, nil
}

// CreateIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func CreateIndexIfNotExists(ctx context.Context, client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(transcriptMapping)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexTranscript 将单条对话写入索引，文档 ID 为消息 ID，重复写入是幂等的。
func IndexTranscript(ctx context.Context, client *elasticsearch.Client, indexName string, doc model.TranscriptDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: strconv.FormatUint(uint64(doc.MessageID), 10),
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引对话到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index transcript")
	}
	return nil
}

// SearchQuery 描述运维检索条件。
type SearchQuery struct {
	Text      string
	SessionID string
	PetID     string
	Size      int
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64             `json:"_score"`
			Source model.TranscriptDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildSearchBody 生成检索请求体：content 全文匹配，会话与宠物为精确过滤。
func BuildSearchBody(q SearchQuery) map[string]any {
	var must []any
	if strings.TrimSpace(q.Text) != "" {
		must = append(must, map[string]any{"match": map[string]any{"content": q.Text}})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}
	var filter []any
	if q.SessionID != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"session_id": q.SessionID}})
	}
	if q.PetID != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"pet_id": q.PetID}})
	}
	size := q.Size
	if size <= 0 || size > 100 {
		size = 20
	}
	boolQuery := map[string]any{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"created_at": "desc"},
		},
	}
}

// SearchTranscripts 按条件检索对话。
func SearchTranscripts(ctx context.Context, client *elasticsearch.Client, indexName string, q SearchQuery) ([]model.TranscriptHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildSearchBody(q)); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(indexName),
		client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned error: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	hits := make([]model.TranscriptHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.TranscriptHit{TranscriptDoc: h.Source, Score: h.Score})
	}
	return hits, nil
}
