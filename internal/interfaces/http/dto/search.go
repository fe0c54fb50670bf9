package dto

import (
	"time"

	"veille-rag-api/internal/domain/entity"
)

// SearchFilters 检索过滤条件载荷
type SearchFilters struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Sources   []string   `json:"sources"`
	Topics    []string   `json:"topics"`
	Lang      string     `json:"lang"`
}

// ToEntity 转换为领域过滤条件
func (f *SearchFilters) ToEntity() entity.SearchFilters {
	if f == nil {
		return entity.SearchFilters{}
	}
	return entity.SearchFilters{
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Sources:   f.Sources,
		Topics:    f.Topics,
		Lang:      f.Lang,
	}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query   string         `json:"query" binding:"required"`
	Limit   int            `json:"limit"`
	Filters *SearchFilters `json:"filters"`

	// 混合检索权重，缺省使用服务端配置
	KeywordWeight *float64 `json:"keyword_weight"`
	VectorWeight  *float64 `json:"vector_weight"`
}

// SearchResponse 检索结果
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []entity.SearchResult `json:"results"`
	Total   int                   `json:"total"`
}
