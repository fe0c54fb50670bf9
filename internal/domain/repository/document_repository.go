// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"veille-rag-api/internal/domain/entity"
)

// KeywordHit 全文检索命中结果
type KeywordHit struct {
	Document entity.Document
	// Rank 文本索引相关性得分（ts_rank）
	Rank float64
}

// DocumentRepository 文档存储接口（混合检索的词法通道）
type DocumentRepository interface {
	// Upsert 按 URL 幂等写入文档
	Upsert(ctx context.Context, doc *entity.Document) error

	// SearchText 全文检索，过滤条件转换为等值/范围谓词
	SearchText(ctx context.Context, query string, filters entity.SearchFilters, limit int) ([]KeywordHit, error)

	// GetByURL 按 URL 查询文档
	GetByURL(ctx context.Context, url string) (*entity.Document, error)

	// Count 统计文档总数
	Count(ctx context.Context) (int64, error)
}
