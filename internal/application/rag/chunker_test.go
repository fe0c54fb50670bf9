package rag

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veille-rag-api/internal/domain/entity"
)

func TestChunkTextEmpty(t *testing.T) {
	c := NewChunker(100, 10)

	assert.Nil(t, c.ChunkText(""))
	assert.Nil(t, c.ChunkText("   \n\t  "))
}

func TestChunkTextShortTextSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)

	chunks := c.ChunkText("La BCE a publié une nouvelle directive. Elle entre en vigueur en 2026.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "La BCE a publié une nouvelle directive. Elle entre en vigueur en 2026.", chunks[0])
}

func TestChunkTextRespectsChunkSize(t *testing.T) {
	c := NewChunker(80, 10)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Ceci est une phrase de test numéro quarante-deux. ")
	}

	chunks := c.ChunkText(sb.String())
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 80, "chunk %d exceeds size", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkTextJoinSpaceCounted(t *testing.T) {
	c := NewChunker(100, 0)

	// 两个 50 rune 的句子拼上空格为 101，不能并入同一片段
	sentence := strings.Repeat("a", 49) + "."
	require.Len(t, []rune(sentence), 50)

	chunks := c.ChunkText(sentence + " " + sentence + " ")
	require.Len(t, chunks, 2)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 100, "chunk %d exceeds size", i)
	}

	// 49+1+50=100 恰好到界，应并入同一片段
	shorter := strings.Repeat("b", 48) + "."
	chunks = c.ChunkText(shorter + " " + sentence + " ")
	require.Len(t, chunks, 1)
	assert.Equal(t, 100, len([]rune(chunks[0])))
}

func TestChunkTextPacksSentences(t *testing.T) {
	c := NewChunker(100, 0)

	text := strings.Repeat("Phrase courte ici. ", 20)
	chunks := c.ChunkText(text)
	require.Greater(t, len(chunks), 1)

	// 片段应包含多个完整句子而非逐句一个片段
	assert.Greater(t, strings.Count(chunks[0], "."), 1)
}

func TestChunkTextOversizedSentenceHardCut(t *testing.T) {
	c := NewChunker(50, 0)

	// 无句末标点的超长文本，只能硬截断
	long := strings.Repeat("é", 120)
	chunks := c.ChunkText(long)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 50, len([]rune(chunks[0])))
}

func TestChunkTextRuneCounting(t *testing.T) {
	c := NewChunker(30, 0)

	// 变音字符按 rune 计数，不按字节
	text := strings.Repeat("éàüö. ", 20)
	for _, chunk := range c.ChunkText(text) {
		assert.LessOrEqual(t, len([]rune(chunk)), 30)
	}
}

func TestChunkDocumentMetadata(t *testing.T) {
	c := NewChunker(60, 0)
	published := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	doc := &entity.Document{
		ID:          "doc-1",
		SourceID:    "acpr",
		Title:       "Directive sur les risques climatiques",
		URL:         "https://example.org/directive",
		Lang:        "fr",
		Topics:      []string{"climat", "risque"},
		Summary:     "Résumé de la directive.",
		Text:        strings.Repeat("Les banques doivent évaluer leurs risques. ", 10),
		PublishedAt: published,
	}

	chunks := c.ChunkDocument(doc)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		meta := chunk.Metadata
		assert.Equal(t, "doc-1", meta.DocumentID)
		assert.Equal(t, "acpr", meta.SourceID)
		assert.Equal(t, doc.Title, meta.Title)
		assert.Equal(t, doc.URL, meta.URL)
		assert.Equal(t, "fr", meta.Lang)
		assert.Equal(t, doc.Topics, meta.Topics)
		assert.Equal(t, doc.Summary, meta.Summary)
		assert.Equal(t, published, meta.PublishedAt)
		assert.Equal(t, i, meta.ChunkIndex)
		assert.Equal(t, chunk.Text, meta.Text)
	}
}

func TestChunkDocumentEmptyText(t *testing.T) {
	c := NewChunker(100, 0)

	assert.Nil(t, c.ChunkDocument(&entity.Document{ID: "doc-1"}))
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -5)

	assert.Equal(t, 500, c.chunkSize)
	assert.Equal(t, 0, c.chunkOverlap)
}
