// Package search 实现词法、向量与混合检索
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/domain/repository"
	"veille-rag-api/internal/infrastructure/embedding"
	"veille-rag-api/internal/infrastructure/persistence/redis"
	"veille-rag-api/internal/infrastructure/vectorindex"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

var tracer = otel.Tracer("search")

const (
	snippetLimit   = 400
	hybridCacheTTL = 5 * time.Minute
)

// hybridCacheKey 按查询参数生成确定性缓存键
func hybridCacheKey(query string, filters entity.SearchFilters, keywordWeight, vectorWeight float64, limit int) string {
	payload, _ := json.Marshal(struct {
		Query         string               `json:"q"`
		Filters       entity.SearchFilters `json:"f"`
		KeywordWeight float64              `json:"kw"`
		VectorWeight  float64              `json:"vw"`
		Limit         int                  `json:"l"`
	}{query, filters, keywordWeight, vectorWeight, limit})
	sum := sha256.Sum256(payload)
	return "search:hybrid:" + hex.EncodeToString(sum[:16])
}

// Engine 统一检索引擎。
// 词法通道走文档库全文索引，向量通道走向量索引，
// 混合检索对两路归一化加权融合。
type Engine struct {
	docs     repository.DocumentRepository
	embedder *embedding.Service
	index    vectorindex.Index
	cache    *redis.Cache
	config   *config.RagConfig
}

// NewEngine 创建检索引擎，cache 可为 nil（禁用结果缓存）
func NewEngine(docs repository.DocumentRepository, embedder *embedding.Service, index vectorindex.Index, cache *redis.Cache, cfg *config.RagConfig) *Engine {
	return &Engine{
		docs:     docs,
		embedder: embedder,
		index:    index,
		cache:    cache,
		config:   cfg,
	}
}

// KeywordSearch 全文检索
func (e *Engine) KeywordSearch(ctx context.Context, query string, filters entity.SearchFilters, limit int) ([]entity.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, span := tracer.Start(ctx, "search.Keyword",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	start := time.Now()
	hits, err := e.docs.SearchText(ctx, query, filters, limit)
	metrics.SearchDuration.WithLabelValues("keyword").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchTotal.WithLabelValues("keyword", "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	metrics.SearchTotal.WithLabelValues("keyword", "success").Inc()

	results := make([]entity.SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc := hit.Document
		text := doc.Summary
		if text == "" {
			text = doc.Text
		}
		results = append(results, entity.SearchResult{
			ID:          doc.ID,
			Title:       doc.Title,
			URL:         doc.URL,
			Summary:     doc.Summary,
			TextSnippet: entity.Snippet(text, snippetLimit),
			SourceID:    doc.SourceID,
			Lang:        doc.Lang,
			Topics:      doc.Topics,
			Score:       hit.Rank,
			ScoreType:   entity.ScoreTypeKeyword,
		})
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// VectorSearch 向量相似度检索。
// 先超采样召回再按过滤条件筛选，补偿过滤造成的损耗。
// L2 距离转换为 1/(1+d) 相似度分。
func (e *Engine) VectorSearch(ctx context.Context, query string, filters entity.SearchFilters, topK int) ([]entity.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}
	oversampling := e.config.OversamplingFactor
	if oversampling <= 0 {
		oversampling = 5
	}

	ctx, span := tracer.Start(ctx, "search.Vector",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	start := time.Now()
	results, err := e.vectorSearch(ctx, query, filters, topK, oversampling)
	metrics.SearchDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchTotal.WithLabelValues("vector", "error").Inc()
		span.RecordError(err)
		return nil, err
	}
	metrics.SearchTotal.WithLabelValues("vector", "success").Inc()
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func (e *Engine) vectorSearch(ctx context.Context, query string, filters entity.SearchFilters, topK, oversampling int) ([]entity.SearchResult, error) {
	vecs, err := e.embedder.EncodeQueries(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	hits, err := e.index.Search(ctx, vecs[0], topK*oversampling)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var results []entity.SearchResult
	for _, hit := range hits {
		meta := hit.Meta
		if !filters.MatchMetadata(meta) {
			continue
		}

		results = append(results, entity.SearchResult{
			ID:          meta.DocumentID,
			Title:       meta.Title,
			URL:         meta.URL,
			Summary:     meta.Summary,
			TextSnippet: entity.Snippet(meta.DisplayText(), snippetLimit),
			SourceID:    meta.SourceID,
			Lang:        meta.Lang,
			Topics:      meta.Topics,
			Score:       vectorindex.Similarity(hit.Distance),
			ScoreType:   entity.ScoreTypeVector,
		})

		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

// HybridSearch 混合检索，两路独立召回后归一化加权融合。
// 同参数查询短时间内复用缓存结果，singleflight 合并并发加载。
func (e *Engine) HybridSearch(ctx context.Context, query string, filters entity.SearchFilters, keywordWeight, vectorWeight float64, limit int) ([]entity.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	if e.cache != nil {
		key := hybridCacheKey(query, filters, keywordWeight, vectorWeight, limit)
		data, err := e.cache.GetOrLoadSafe(ctx, key, hybridCacheTTL, func() (interface{}, error) {
			return e.hybridSearch(ctx, query, filters, keywordWeight, vectorWeight, limit)
		})
		if err != nil {
			return nil, err
		}
		var results []entity.SearchResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("failed to decode cached search results: %w", err)
		}
		return results, nil
	}

	return e.hybridSearch(ctx, query, filters, keywordWeight, vectorWeight, limit)
}

func (e *Engine) hybridSearch(ctx context.Context, query string, filters entity.SearchFilters, keywordWeight, vectorWeight float64, limit int) ([]entity.SearchResult, error) {

	ctx, span := tracer.Start(ctx, "search.Hybrid",
		trace.WithAttributes(
			attribute.Float64("keyword_weight", keywordWeight),
			attribute.Float64("vector_weight", vectorWeight),
			attribute.Int("limit", limit),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	}()

	keywordResults, err := e.KeywordSearch(ctx, query, filters, limit)
	if err != nil {
		// 词法通道失败不阻断混合检索，向量通道仍可服务
		logger.Warn(ctx, "keyword channel failed in hybrid search", "error", err)
		keywordResults = nil
	}

	vectorResults, err := e.VectorSearch(ctx, query, filters, limit)
	if err != nil {
		metrics.SearchTotal.WithLabelValues("hybrid", "error").Inc()
		span.RecordError(err)
		return nil, err
	}

	fused := fuseResults(keywordResults, vectorResults, keywordWeight, vectorWeight, limit)
	metrics.SearchTotal.WithLabelValues("hybrid", "success").Inc()
	span.SetAttributes(attribute.Int("result_count", len(fused)))
	return fused, nil
}
