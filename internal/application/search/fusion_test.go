package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veille-rag-api/internal/domain/entity"
)

func TestNormalizeScores(t *testing.T) {
	assert.Nil(t, normalizeScores(nil))

	normalized := normalizeScores([]float64{2.0, 6.0, 4.0})
	require.Len(t, normalized, 3)
	assert.InDelta(t, 0.0, normalized[0], 1e-9)
	assert.InDelta(t, 1.0, normalized[1], 1e-9)
	assert.InDelta(t, 0.5, normalized[2], 1e-9)
}

func TestNormalizeScoresAllEqual(t *testing.T) {
	for _, scores := range [][]float64{{0.42}, {3.0, 3.0, 3.0}} {
		for _, n := range normalizeScores(scores) {
			assert.Equal(t, 1.0, n)
		}
	}
}

func TestFuseResultsWeightedSum(t *testing.T) {
	keyword := []entity.SearchResult{
		{ID: "a", Title: "Doc A", Score: 10.0, ScoreType: entity.ScoreTypeKeyword},
		{ID: "b", Title: "Doc B", Score: 5.0, ScoreType: entity.ScoreTypeKeyword},
	}
	vector := []entity.SearchResult{
		{ID: "b", Title: "Doc B", Score: 0.9, ScoreType: entity.ScoreTypeVector},
		{ID: "c", Title: "Doc C", Score: 0.3, ScoreType: entity.ScoreTypeVector},
	}

	fused := fuseResults(keyword, vector, 0.3, 0.7, 10)
	require.Len(t, fused, 3)

	byID := make(map[string]entity.SearchResult)
	for _, r := range fused {
		byID[r.ID] = r
		assert.Equal(t, entity.ScoreTypeHybrid, r.ScoreType)
	}

	// 归一化后：kw a=1.0 b=0.0；vec b=1.0 c=0.0
	assert.InDelta(t, 0.3*1.0, byID["a"].Score, 1e-9)
	assert.InDelta(t, 0.3*0.0+0.7*1.0, byID["b"].Score, 1e-9)
	assert.InDelta(t, 0.0, byID["c"].Score, 1e-9)

	// 降序排列
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
}

func TestFuseResultsDisjointSets(t *testing.T) {
	keyword := []entity.SearchResult{
		{ID: "a", Score: 1.0, ScoreType: entity.ScoreTypeKeyword},
	}
	vector := []entity.SearchResult{
		{ID: "b", Score: 1.0, ScoreType: entity.ScoreTypeVector},
	}

	fused := fuseResults(keyword, vector, 0.3, 0.7, 10)
	require.Len(t, fused, 2)

	// 各自单独一路，归一化为 1.0，缺失一路按 0 计
	assert.Equal(t, "b", fused[0].ID)
	assert.InDelta(t, 0.7, fused[0].Score, 1e-9)
	assert.Equal(t, "a", fused[1].ID)
	assert.InDelta(t, 0.3, fused[1].Score, 1e-9)
}

func TestFuseResultsMergesMetadata(t *testing.T) {
	keyword := []entity.SearchResult{
		{ID: "a", Title: "Titre complet", Score: 1.0},
	}
	vector := []entity.SearchResult{
		{ID: "a", Summary: "Résumé du document", URL: "https://example.org/a", Score: 1.0},
	}

	fused := fuseResults(keyword, vector, 0.5, 0.5, 10)
	require.Len(t, fused, 1)
	assert.Equal(t, "Titre complet", fused[0].Title)
	assert.Equal(t, "Résumé du document", fused[0].Summary)
	assert.Equal(t, "https://example.org/a", fused[0].URL)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-9)
}

func TestFuseResultsJoinByURLWhenNoID(t *testing.T) {
	keyword := []entity.SearchResult{
		{URL: "https://example.org/x", Score: 1.0},
	}
	vector := []entity.SearchResult{
		{URL: "https://example.org/x", Score: 1.0},
	}

	fused := fuseResults(keyword, vector, 0.4, 0.6, 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-9)
}

func TestFuseResultsLimit(t *testing.T) {
	var keyword []entity.SearchResult
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		keyword = append(keyword, entity.SearchResult{ID: id, Score: float64(len(id))})
	}

	fused := fuseResults(keyword, nil, 1.0, 0.0, 3)
	assert.Len(t, fused, 3)
}

func TestFuseResultsEmptyInputs(t *testing.T) {
	assert.Empty(t, fuseResults(nil, nil, 0.3, 0.7, 10))
}
