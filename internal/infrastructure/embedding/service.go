// Package embedding 提供文本向量化服务
package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"

	"veille-rag-api/internal/config"
	"veille-rag-api/pkg/logger"
)

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// Service Embedding 服务。
// E5 系列模型为非对称模型，查询与文档需分别加前缀，
// 其余模型原文透传。维度在首次调用时探测一次并缓存。
type Service struct {
	embedder  embedding.Embedder
	model     string
	batchSize int

	dimOnce sync.Once
	dim     int
	dimErr  error
}

func NewService(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Service{
		embedder:  embedder,
		model:     cfg.Model,
		batchSize: batchSize,
	}
}

// asymmetric E5 模型需要角色前缀
func (s *Service) asymmetric() bool {
	return strings.Contains(strings.ToLower(s.model), "e5")
}

// EncodeQueries 编码查询文本
func (s *Service) EncodeQueries(ctx context.Context, texts []string) ([][]float32, error) {
	if s.asymmetric() {
		texts = withPrefix(texts, queryPrefix)
	}
	return s.encode(ctx, texts)
}

// EncodePassages 编码文档文本
func (s *Service) EncodePassages(ctx context.Context, texts []string) ([][]float32, error) {
	if s.asymmetric() {
		texts = withPrefix(texts, passagePrefix)
	}
	return s.encode(ctx, texts)
}

// Dim 返回向量维度，首次调用时向服务端探测
func (s *Service) Dim(ctx context.Context) (int, error) {
	s.dimOnce.Do(func() {
		probe := "dimension probe"
		if s.asymmetric() {
			probe = passagePrefix + probe
		}
		vecs, err := s.embedder.EmbedStrings(ctx, []string{probe})
		if err != nil {
			s.dimErr = fmt.Errorf("failed to probe embedding dimension: %w", err)
			return
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			s.dimErr = fmt.Errorf("embedding dimension probe returned empty vector")
			return
		}
		s.dim = len(vecs[0])
		logger.Info(ctx, "embedding dimension probed",
			"model", s.model,
			"dim", s.dim,
		)
	})
	return s.dim, s.dimErr
}

// Warmup 预热模型并探测维度
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.Dim(ctx)
	return err
}

func (s *Service) encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := i + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := s.embedder.EmbedStrings(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vecs), end-i)
		}
		for _, v := range vecs {
			all = append(all, toFloat32(v))
		}
	}

	s.dimOnce.Do(func() {
		if len(all) > 0 && len(all[0]) > 0 {
			s.dim = len(all[0])
		} else {
			s.dimErr = fmt.Errorf("embedding returned empty vector")
		}
	})

	return all, nil
}

func withPrefix(texts []string, prefix string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
