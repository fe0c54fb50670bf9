package embedding

import (
	"context"
	"errors"
	"testing"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veille-rag-api/internal/config"
)

// fakeEmbedder 记录收到的文本并返回固定维度向量
type fakeEmbedder struct {
	dim   int
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, f.dim)
		vec[0] = float64(i + 1)
		vecs[i] = vec
	}
	return vecs, nil
}

func TestEncodeQueriesE5Prefix(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	s := NewService(fake, &config.EmbeddingConfig{Model: "intfloat/multilingual-e5-large"})

	_, err := s.EncodeQueries(context.Background(), []string{"taux directeur"})
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"query: taux directeur"}, fake.calls[0])
}

func TestEncodePassagesE5Prefix(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	s := NewService(fake, &config.EmbeddingConfig{Model: "intfloat/multilingual-e5-large"})

	_, err := s.EncodePassages(context.Background(), []string{"texte du document"})
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"passage: texte du document"}, fake.calls[0])
}

func TestEncodeSymmetricModelNoPrefix(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	s := NewService(fake, &config.EmbeddingConfig{Model: "sentence-transformers/all-MiniLM-L6-v2"})

	_, err := s.EncodeQueries(context.Background(), []string{"taux directeur"})
	require.NoError(t, err)
	assert.Equal(t, []string{"taux directeur"}, fake.calls[0])
}

func TestEncodeBatching(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model", BatchSize: 2})

	vecs, err := s.EncodePassages(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	require.Len(t, fake.calls, 3)
	assert.Len(t, fake.calls[0], 2)
	assert.Len(t, fake.calls[1], 2)
	assert.Len(t, fake.calls[2], 1)
}

func TestEncodeEmptyInput(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	vecs, err := s.EncodeQueries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, fake.calls)
}

func TestEncodeFloat32Conversion(t *testing.T) {
	fake := &fakeEmbedder{dim: 3}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	vecs, err := s.EncodePassages(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
}

func TestEncodeError(t *testing.T) {
	fake := &fakeEmbedder{dim: 4, err: errors.New("backend down")}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	_, err := s.EncodeQueries(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestDimProbe(t *testing.T) {
	fake := &fakeEmbedder{dim: 768}
	s := NewService(fake, &config.EmbeddingConfig{Model: "intfloat/multilingual-e5-small"})

	dim, err := s.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 768, dim)

	// 维度只探测一次并缓存
	dim, err = s.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 768, dim)
	assert.Len(t, fake.calls, 1)

	// E5 模型探测文本带 passage 前缀
	assert.Equal(t, []string{"passage: dimension probe"}, fake.calls[0])
}

func TestWarmupProbesDimension(t *testing.T) {
	fake := &fakeEmbedder{dim: 32}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	require.NoError(t, s.Warmup(context.Background()))
	assert.Len(t, fake.calls, 1)

	dim, err := s.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32, dim)
	assert.Len(t, fake.calls, 1)
}

func TestDimProbeError(t *testing.T) {
	fake := &fakeEmbedder{dim: 4, err: errors.New("backend down")}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	_, err := s.Dim(context.Background())
	assert.Error(t, err)
}

func TestDimSettledByEncode(t *testing.T) {
	fake := &fakeEmbedder{dim: 16}
	s := NewService(fake, &config.EmbeddingConfig{Model: "test-model"})

	_, err := s.EncodePassages(context.Background(), []string{"a"})
	require.NoError(t, err)

	dim, err := s.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, dim)
	// encode 已探明维度，无额外探测调用
	assert.Len(t, fake.calls, 1)
}
