// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"veille-rag-api/internal/application/rag"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/interfaces/http/dto"
	"veille-rag-api/pkg/errors"
	"veille-rag-api/pkg/logger"
)

// RagHandler RAG 入库与问答处理器
type RagHandler struct {
	pipeline *rag.Pipeline
	chatbot  *rag.Chatbot
}

// NewRagHandler 创建 RAG 处理器
func NewRagHandler(pipeline *rag.Pipeline, chatbot *rag.Chatbot) *RagHandler {
	return &RagHandler{
		pipeline: pipeline,
		chatbot:  chatbot,
	}
}

// Index 批量入库文档
// @Summary 文档入库
// @Tags RAG
// @Accept json
// @Produce json
// @Router /v1/rag/documents [post]
func (h *RagHandler) Index(c *gin.Context) {
	var req dto.IndexDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	docs := make([]*entity.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.ToEntity()
	}

	if err := h.pipeline.IndexDocuments(c.Request.Context(), docs); err != nil {
		logger.Error(c.Request.Context(), "document indexing failed", err)
		appErr := errors.AsAppError(err)
		dto.ErrorWithDetail(c, appErr.HTTPStatus, "indexing failed", &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Message,
		})
		return
	}

	dto.Success(c, dto.IndexDocumentsResponse{
		Documents: len(docs),
		IndexSize: h.pipeline.IndexSize(),
	})
}

// Ask 检索增强问答
// @Summary 问答
// @Tags RAG
// @Accept json
// @Produce json
// @Router /v1/rag/ask [post]
func (h *RagHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	answer, err := h.pipeline.AnswerQuestion(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		logger.Error(c.Request.Context(), "rag answer failed", err)
		appErr := errors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	dto.Success(c, answer)
}

// Retrieve 片段召回（调试用）
// @Summary 召回
// @Tags RAG
// @Accept json
// @Produce json
// @Router /v1/rag/retrieve [post]
func (h *RagHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	chunks, err := h.pipeline.Retrieve(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		logger.Error(c.Request.Context(), "retrieval failed", err)
		appErr := errors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	results := make([]dto.RetrievedChunk, len(chunks))
	for i, chunk := range chunks {
		results[i] = dto.RetrievedChunk{Text: chunk.Text, Metadata: chunk.Metadata}
	}
	dto.Success(c, results)
}

// Chat 置信度门控的对话式问答
// @Summary 对话问答
// @Tags RAG
// @Accept json
// @Produce json
// @Router /v1/rag/chat [post]
func (h *RagHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	answer, err := h.chatbot.Answer(c.Request.Context(), req.Question, req.Filters.ToEntity(), req.TopK)
	if err != nil {
		logger.Error(c.Request.Context(), "chat answer failed", err)
		appErr := errors.AsAppError(err)
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	dto.Success(c, answer)
}
