// Package reranker 提供交叉编码器重排序客户端
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"veille-rag-api/internal/config"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

// Result 重排序结果，Index 指向原候选列表
type Result struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker 按与查询的相关度对候选文档重排序
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k"`
}

type rerankResponse struct {
	Results []Result `json:"results"`
}

func NewClient(cfg *config.RerankerConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "cross-encoder/ms-marco-multilingual-MiniLM-L-6-v2"
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rerank 调用重排序服务。服务不可用或未配置时退化为恒等排序，
// 保持候选原有顺序且不报错，检索结果始终可用。
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}
	if c.endpoint == "" {
		return identity(len(documents), topK), nil
	}

	results, err := c.doRerank(ctx, query, documents, topK)
	if err != nil {
		logger.Warn(ctx, "reranking failed, falling back to original order", "error", err)
		metrics.RerankFallbackTotal.Inc()
		return identity(len(documents), topK), nil
	}
	return results, nil
}

func (c *Client) doRerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	reqBody, err := json.Marshal(&rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     c.model,
		TopK:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid reranker endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/rerank"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("rerank request failed: status=%d", httpResp.StatusCode)
	}

	var resp rerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := resp.Results
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank response index out of range: %d", r.Index)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// identity 恒等排序，分数统一为 1.0
func identity(n, topK int) []Result {
	if topK > n {
		topK = n
	}
	results := make([]Result, topK)
	for i := range results {
		results[i] = Result{Index: i, Score: 1.0}
	}
	return results
}
