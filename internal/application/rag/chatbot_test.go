package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veille-rag-api/internal/application/search"
	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/infrastructure/embedding"
	"veille-rag-api/internal/infrastructure/vectorindex"
)

func newTestChatbot(t *testing.T, cfg *config.RagConfig, embVectors map[string][]float64) (*Chatbot, *vectorindex.Flat) {
	t.Helper()
	idx, err := vectorindex.OpenFlat(context.Background(), t.TempDir(), 3)
	require.NoError(t, err)

	embedder := embedding.NewService(
		&fakeEmbedder{vectors: embVectors},
		&config.EmbeddingConfig{Model: "test-model"},
	)
	engine := search.NewEngine(&fakeDocRepo{}, embedder, idx, nil, cfg)
	return NewChatbot(engine, failingGenerator(), nil, cfg), idx
}

func TestChatbotRefusesEmptyQuestion(t *testing.T) {
	bot, _ := newTestChatbot(t, testRagConfig(), nil)

	answer, err := bot.Answer(context.Background(), "   ", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.False(t, answer.Safe)
	assert.Equal(t, refusalAnswer, answer.Answer)
	assert.Equal(t, "Question vide ou invalide.", answer.Reason)
	assert.Empty(t, answer.Sources)
}

func TestChatbotRefusesNoResults(t *testing.T) {
	bot, _ := newTestChatbot(t, testRagConfig(), map[string][]float64{
		"question inconnue": {1, 0, 0},
	})

	answer, err := bot.Answer(context.Background(), "question inconnue", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.False(t, answer.Safe)
	assert.Equal(t, "Aucun document pertinent trouvé.", answer.Reason)
}

func TestChatbotRefusesLowConfidence(t *testing.T) {
	cfg := testRagConfig()
	cfg.MinScore = 0.9

	bot, idx := newTestChatbot(t, cfg, map[string][]float64{
		"question": {1, 0, 0},
	})
	// 单路向量命中，融合分 = vector_weight = 0.7 < 0.9
	require.NoError(t, idx.Add(context.Background(),
		[][]float32{{1, 0, 0}},
		[]entity.ChunkMetadata{{DocumentID: "d1", Text: "contenu"}},
	))

	answer, err := bot.Answer(context.Background(), "question", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.False(t, answer.Safe)
	assert.Contains(t, answer.Reason, "Score de similarité insuffisant")
}

func TestChatbotRefusesTooFewDocuments(t *testing.T) {
	cfg := testRagConfig()
	cfg.MinScore = 0.5
	cfg.MinDocuments = 3

	bot, idx := newTestChatbot(t, cfg, map[string][]float64{
		"question": {1, 0, 0},
	})
	require.NoError(t, idx.Add(context.Background(),
		[][]float32{{1, 0, 0}},
		[]entity.ChunkMetadata{{DocumentID: "d1", Text: "contenu"}},
	))

	answer, err := bot.Answer(context.Background(), "question", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.False(t, answer.Safe)
	assert.Contains(t, answer.Reason, "Nombre de documents insuffisant")
}

func TestChatbotAnsweredWithDisclaimer(t *testing.T) {
	bot, idx := newTestChatbot(t, testRagConfig(), map[string][]float64{
		"quels risques climatiques": {1, 0, 0},
	})
	require.NoError(t, idx.Add(context.Background(),
		[][]float32{{1, 0, 0}},
		[]entity.ChunkMetadata{{
			DocumentID: "d1",
			Title:      "Risques climatiques",
			URL:        "https://example.org/climat",
			Summary:    "Les banques doivent évaluer leur exposition.",
			Text:       "contenu complet",
		}},
	))

	answer, err := bot.Answer(context.Background(), "quels risques climatiques", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.True(t, answer.Safe)
	// 生成链路不可用时回退为固定致歉文案，但回答路径仍视为已回答
	assert.Contains(t, answer.Answer, generationFailedAnswer)
	assert.True(t, strings.HasSuffix(answer.Answer, complianceDisclaimer))
	assert.Contains(t, answer.Reason, "documents")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "https://example.org/climat", answer.Sources[0].URL)
}

func TestChatbotRefusesResultsWithoutUsableText(t *testing.T) {
	bot, idx := newTestChatbot(t, testRagConfig(), map[string][]float64{
		"question": {1, 0, 0},
	})
	// 命中结果无摘要且无文本
	require.NoError(t, idx.Add(context.Background(),
		[][]float32{{1, 0, 0}},
		[]entity.ChunkMetadata{{DocumentID: "d1", URL: "https://example.org/vide"}},
	))

	answer, err := bot.Answer(context.Background(), "question", entity.SearchFilters{}, 5)
	require.NoError(t, err)
	assert.False(t, answer.Safe)
	assert.Contains(t, answer.Reason, "texte exploitable")
}

func TestChatbotSearchFailurePropagates(t *testing.T) {
	idx, err := vectorindex.OpenFlat(context.Background(), t.TempDir(), 3)
	require.NoError(t, err)
	embedder := embedding.NewService(
		&fakeEmbedder{err: errors.New("backend down")},
		&config.EmbeddingConfig{Model: "test-model"},
	)
	cfg := testRagConfig()
	engine := search.NewEngine(&fakeDocRepo{}, embedder, idx, nil, cfg)
	bot := NewChatbot(engine, failingGenerator(), nil, cfg)

	_, err = bot.Answer(context.Background(), "question", entity.SearchFilters{}, 5)
	assert.Error(t, err)
}
