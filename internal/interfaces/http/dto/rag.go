package dto

import (
	"time"

	"veille-rag-api/internal/domain/entity"
)

// DocumentInput 入库文档载荷
type DocumentInput struct {
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url" binding:"required"`
	Lang        string    `json:"lang"`
	Topics      []string  `json:"topics"`
	Summary     string    `json:"summary"`
	Text        string    `json:"text" binding:"required"`
	PublishedAt time.Time `json:"published_at"`
}

// ToEntity 转换为领域实体
func (d DocumentInput) ToEntity() *entity.Document {
	return &entity.Document{
		SourceID:    d.SourceID,
		Title:       d.Title,
		URL:         d.URL,
		Lang:        d.Lang,
		Topics:      d.Topics,
		Summary:     d.Summary,
		Text:        d.Text,
		PublishedAt: d.PublishedAt,
	}
}

// IndexDocumentsRequest 批量入库请求
type IndexDocumentsRequest struct {
	Documents []DocumentInput `json:"documents" binding:"required,min=1,dive"`
}

// IndexDocumentsResponse 入库结果
type IndexDocumentsResponse struct {
	Documents int `json:"documents"`
	IndexSize int `json:"index_size"`
}

// AskRequest 检索增强问答请求
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

// ChatRequest 对话式问答请求
type ChatRequest struct {
	Question string         `json:"question" binding:"required"`
	TopK     int            `json:"top_k"`
	Filters  *SearchFilters `json:"filters"`
}

// RetrieveRequest 片段召回请求（调试接口）
type RetrieveRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

// RetrievedChunk 召回片段
type RetrievedChunk struct {
	Text     string               `json:"text"`
	Metadata entity.ChunkMetadata `json:"metadata"`
}
