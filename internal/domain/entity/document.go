// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// Document 入库的已富化文档（来源于抓取层 + NLP 富化层）
type Document struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceID    string    `json:"source_id" gorm:"type:varchar(128);index"`
	Title       string    `json:"title" gorm:"type:varchar(512)"`
	URL         string    `json:"url" gorm:"type:varchar(1024);uniqueIndex"`
	Lang        string    `json:"lang,omitempty" gorm:"type:varchar(8);index"`
	Topics      []string  `json:"topics,omitempty" gorm:"type:jsonb;serializer:json"`
	Summary     string    `json:"summary,omitempty" gorm:"type:text"`
	Text        string    `json:"text" gorm:"type:text"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// ChunkMetadata 向量索引中与每个向量并行存储的元数据。
// 字段在入库边界校验，而非下游随用随取。
type ChunkMetadata struct {
	DocumentID  string    `json:"document_id,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`

	// ChunkIndex 分块序号；Text 为分块文本本体，
	// 冗余进元数据以便检索展示时无需二次查库。
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text,omitempty"`
}

// Chunk 切分后的文档片段，入库后不可变
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// DisplayText 返回用于上下文展示的文本（优先摘要）
func (m ChunkMetadata) DisplayText() string {
	if s := strings.TrimSpace(m.Summary); s != "" {
		return s
	}
	return strings.TrimSpace(m.Text)
}

// DisplayTitle 返回用于引用的标题，空标题回退为占位名
func (m ChunkMetadata) DisplayTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	return "Document"
}
