package handler

import (
	"github.com/gin-gonic/gin"

	"veille-rag-api/internal/application/search"
	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/interfaces/http/dto"
	"veille-rag-api/pkg/errors"
	"veille-rag-api/pkg/logger"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	engine *search.Engine
	config *config.RagConfig
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(engine *search.Engine, cfg *config.RagConfig) *SearchHandler {
	return &SearchHandler{
		engine: engine,
		config: cfg,
	}
}

// Keyword 全文检索
// @Summary 词法检索
// @Tags Search
// @Accept json
// @Produce json
// @Router /v1/search/keyword [post]
func (h *SearchHandler) Keyword(c *gin.Context) {
	h.handle(c, func(req dto.SearchRequest) ([]entity.SearchResult, error) {
		return h.engine.KeywordSearch(c.Request.Context(), req.Query, req.Filters.ToEntity(), req.Limit)
	})
}

// Vector 向量检索
// @Summary 语义检索
// @Tags Search
// @Accept json
// @Produce json
// @Router /v1/search/vector [post]
func (h *SearchHandler) Vector(c *gin.Context) {
	h.handle(c, func(req dto.SearchRequest) ([]entity.SearchResult, error) {
		return h.engine.VectorSearch(c.Request.Context(), req.Query, req.Filters.ToEntity(), req.Limit)
	})
}

// Hybrid 混合检索
// @Summary 混合检索
// @Tags Search
// @Accept json
// @Produce json
// @Router /v1/search/hybrid [post]
func (h *SearchHandler) Hybrid(c *gin.Context) {
	h.handle(c, func(req dto.SearchRequest) ([]entity.SearchResult, error) {
		keywordWeight := h.config.KeywordWeight
		vectorWeight := h.config.VectorWeight
		if req.KeywordWeight != nil {
			keywordWeight = *req.KeywordWeight
		}
		if req.VectorWeight != nil {
			vectorWeight = *req.VectorWeight
		}
		return h.engine.HybridSearch(c.Request.Context(), req.Query, req.Filters.ToEntity(),
			keywordWeight, vectorWeight, req.Limit)
	})
}

func (h *SearchHandler) handle(c *gin.Context, fn func(req dto.SearchRequest) ([]entity.SearchResult, error)) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	results, err := fn(req)
	if err != nil {
		logger.Error(c.Request.Context(), "search failed", err)
		appErr := errors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	dto.Success(c, dto.SearchResponse{
		Query:   req.Query,
		Results: results,
		Total:   len(results),
	})
}
