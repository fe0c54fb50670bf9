package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchResultKey(t *testing.T) {
	assert.Equal(t, "id-1", SearchResult{ID: "id-1", URL: "https://example.org"}.Key())
	assert.Equal(t, "https://example.org", SearchResult{URL: "https://example.org"}.Key())
	assert.Equal(t, "", SearchResult{}.Key())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "court", Snippet("  court  ", 100))
	assert.Equal(t, "éàü...", Snippet("éàüöî", 3))
	assert.Equal(t, "sans limite", Snippet("sans limite", 0))
}

func TestSearchFiltersIsZero(t *testing.T) {
	assert.True(t, SearchFilters{}.IsZero())
	assert.False(t, SearchFilters{Lang: "fr"}.IsZero())

	now := time.Now()
	assert.False(t, SearchFilters{StartDate: &now}.IsZero())
}

func TestMatchMetadataLang(t *testing.T) {
	f := SearchFilters{Lang: "fr"}
	assert.True(t, f.MatchMetadata(ChunkMetadata{Lang: "fr"}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{Lang: "en"}))
}

func TestMatchMetadataSources(t *testing.T) {
	f := SearchFilters{Sources: []string{"acpr", "bce"}}
	assert.True(t, f.MatchMetadata(ChunkMetadata{SourceID: "bce"}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{SourceID: "amf"}))
}

func TestMatchMetadataTopics(t *testing.T) {
	f := SearchFilters{Topics: []string{"climat"}}
	assert.True(t, f.MatchMetadata(ChunkMetadata{Topics: []string{"risque", "climat"}}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{Topics: []string{"liquidité"}}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{}))
}

func TestMatchMetadataDateRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	f := SearchFilters{StartDate: &start, EndDate: &end}

	assert.True(t, f.MatchMetadata(ChunkMetadata{
		PublishedAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{
		PublishedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}))
	assert.False(t, f.MatchMetadata(ChunkMetadata{
		PublishedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}))

	// 缺失发布日期时不按日期过滤
	assert.True(t, f.MatchMetadata(ChunkMetadata{}))
}

func TestChunkMetadataDisplayText(t *testing.T) {
	assert.Equal(t, "résumé", ChunkMetadata{Summary: " résumé ", Text: "texte"}.DisplayText())
	assert.Equal(t, "texte", ChunkMetadata{Text: " texte "}.DisplayText())
	assert.Equal(t, "", ChunkMetadata{}.DisplayText())
}

func TestChunkMetadataDisplayTitle(t *testing.T) {
	assert.Equal(t, "Titre", ChunkMetadata{Title: "Titre"}.DisplayTitle())
	assert.Equal(t, "Document", ChunkMetadata{Title: "  "}.DisplayTitle())
}

func TestSnippetRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 10)
	s := Snippet(text, 5)
	assert.Equal(t, strings.Repeat("é", 5)+"...", s)
}
