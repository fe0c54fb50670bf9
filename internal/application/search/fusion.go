package search

import (
	"sort"

	"veille-rag-api/internal/domain/entity"
)

// normalizeScores Min-Max 归一化到 [0,1]。
// 所有分数相同（含单个结果）时统一为 1.0。
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	minS, maxS := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
	}

	normalized := make([]float64, len(scores))
	if maxS == minS {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}
	for i, s := range scores {
		normalized[i] = (s - minS) / (maxS - minS)
	}
	return normalized
}

// fuseResults 融合词法与向量两路结果。
// 各路先归一化，按逻辑键（ID 优先，其次 URL）join，
// 融合分 = keywordWeight*sk + vectorWeight*sv，缺失一路按 0 计。
// 两路都有的结果按非空字段合并元信息。
func fuseResults(keywordResults, vectorResults []entity.SearchResult, keywordWeight, vectorWeight float64, limit int) []entity.SearchResult {
	kwScores := normalizeScores(scoresOf(keywordResults))
	vecScores := normalizeScores(scoresOf(vectorResults))

	type fusedEntry struct {
		result  entity.SearchResult
		kwScore float64
		vScore  float64
	}

	combined := make(map[string]*fusedEntry)
	order := make([]string, 0, len(keywordResults)+len(vectorResults))

	for i, r := range keywordResults {
		key := r.Key()
		combined[key] = &fusedEntry{result: r, kwScore: kwScores[i]}
		order = append(order, key)
	}

	for i, r := range vectorResults {
		key := r.Key()
		if existing, ok := combined[key]; ok {
			existing.vScore = vecScores[i]
			existing.result = mergeResults(existing.result, r)
		} else {
			combined[key] = &fusedEntry{result: r, vScore: vecScores[i]}
			order = append(order, key)
		}
	}

	fused := make([]entity.SearchResult, 0, len(order))
	for _, key := range order {
		entry := combined[key]
		entry.result.Score = keywordWeight*entry.kwScore + vectorWeight*entry.vScore
		entry.result.ScoreType = entity.ScoreTypeHybrid
		fused = append(fused, entry.result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// mergeResults 按非空字段合并，base 优先
func mergeResults(base, other entity.SearchResult) entity.SearchResult {
	if base.ID == "" {
		base.ID = other.ID
	}
	if base.Title == "" {
		base.Title = other.Title
	}
	if base.URL == "" {
		base.URL = other.URL
	}
	if base.Summary == "" {
		base.Summary = other.Summary
	}
	if base.TextSnippet == "" {
		base.TextSnippet = other.TextSnippet
	}
	if base.SourceID == "" {
		base.SourceID = other.SourceID
	}
	if base.Lang == "" {
		base.Lang = other.Lang
	}
	if len(base.Topics) == 0 {
		base.Topics = other.Topics
	}
	return base
}

func scoresOf(results []entity.SearchResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	return scores
}
