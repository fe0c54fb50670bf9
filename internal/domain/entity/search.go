package entity

import (
	"strings"
	"time"
)

// ScoreType 结果评分来源
type ScoreType string

const (
	ScoreTypeKeyword ScoreType = "keyword"
	ScoreTypeVector  ScoreType = "vector"
	ScoreTypeHybrid  ScoreType = "hybrid"
)

// SearchFilters 检索过滤条件（纯谓词值对象）
type SearchFilters struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Sources   []string   `json:"sources,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	Lang      string     `json:"lang,omitempty"`
}

// IsZero 判断是否未设置任何过滤条件
func (f SearchFilters) IsZero() bool {
	return f.StartDate == nil && f.EndDate == nil &&
		len(f.Sources) == 0 && len(f.Topics) == 0 && f.Lang == ""
}

// MatchMetadata 对向量检索召回的元数据执行过滤谓词。
// 日期过滤依赖元数据中的 published_at，缺失时不过滤。
func (f SearchFilters) MatchMetadata(meta ChunkMetadata) bool {
	if f.Lang != "" && meta.Lang != f.Lang {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, meta.SourceID) {
		return false
	}
	if len(f.Topics) > 0 && !intersects(f.Topics, meta.Topics) {
		return false
	}
	if !meta.PublishedAt.IsZero() {
		if f.StartDate != nil && meta.PublishedAt.Before(*f.StartDate) {
			return false
		}
		if f.EndDate != nil && meta.PublishedAt.After(*f.EndDate) {
			return false
		}
	}
	return true
}

// SearchResult 统一检索结果
type SearchResult struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	TextSnippet string    `json:"text_snippet,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Score       float64   `json:"score"`
	ScoreType   ScoreType `json:"score_type"`
}

// Key 返回融合用逻辑键：优先文档 ID，其次 URL
func (r SearchResult) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.URL
}

// Snippet 按 rune 截取展示片段
func Snippet(text string, max int) string {
	t := strings.TrimSpace(text)
	if max <= 0 {
		return t
	}
	r := []rune(t)
	if len(r) <= max {
		return t
	}
	return string(r[:max]) + "..."
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
