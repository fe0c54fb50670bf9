// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gorm.io/gorm/clause"

	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/domain/repository"
)

// tsvectorExpr 与 Migrate 建的 GIN 索引表达式保持一致
const tsvectorExpr = `to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(text, ''))`

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// Upsert 按 URL 幂等写入文档
func (r *DocumentRepository) Upsert(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Upsert")
	defer span.End()

	err := r.client.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_id", "title", "lang", "topics", "summary", "text", "published_at",
		}),
	}).Create(doc).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// SearchText 全文检索，ts_rank 降序。
// 主题过滤在 Go 侧做交集判断，避免对 jsonb 列做表达式谓词。
func (r *DocumentRepository) SearchText(ctx context.Context, query string, filters entity.SearchFilters, limit int) ([]repository.KeywordHit, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.SearchText")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, source_id, title, url, lang, topics, summary, text, published_at, created_at,
			ts_rank(%s, plainto_tsquery('simple', $1)) AS rank
		FROM documents
		WHERE %s @@ plainto_tsquery('simple', $1)`, tsvectorExpr, tsvectorExpr)

	args := []interface{}{query}
	argn := 2

	if filters.StartDate != nil {
		sqlQuery += fmt.Sprintf(" AND published_at >= $%d", argn)
		args = append(args, *filters.StartDate)
		argn++
	}
	if filters.EndDate != nil {
		sqlQuery += fmt.Sprintf(" AND published_at <= $%d", argn)
		args = append(args, *filters.EndDate)
		argn++
	}
	if filters.Lang != "" {
		sqlQuery += fmt.Sprintf(" AND lang = $%d", argn)
		args = append(args, filters.Lang)
		argn++
	}
	if len(filters.Sources) > 0 {
		sqlQuery += " AND source_id IN ("
		for i := range filters.Sources {
			if i > 0 {
				sqlQuery += ","
			}
			sqlQuery += fmt.Sprintf("$%d", argn)
			args = append(args, filters.Sources[i])
			argn++
		}
		sqlQuery += ")"
	}

	sqlQuery += fmt.Sprintf(" ORDER BY rank DESC LIMIT $%d", argn)
	args = append(args, limit)

	rows, err := r.client.db.WithContext(ctx).Raw(sqlQuery, args...).Rows()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var hits []repository.KeywordHit
	for rows.Next() {
		var doc entity.Document
		var topicsJSON []byte
		var publishedAt sql.NullTime
		var rank float64

		if err := rows.Scan(
			&doc.ID, &doc.SourceID, &doc.Title, &doc.URL, &doc.Lang,
			&topicsJSON, &doc.Summary, &doc.Text, &publishedAt, &doc.CreatedAt, &rank,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if len(topicsJSON) > 0 {
			_ = json.Unmarshal(topicsJSON, &doc.Topics)
		}
		if publishedAt.Valid {
			doc.PublishedAt = publishedAt.Time
		}

		if len(filters.Topics) > 0 && !topicsIntersect(filters.Topics, doc.Topics) {
			continue
		}
		hits = append(hits, repository.KeywordHit{Document: doc, Rank: rank})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return hits, nil
}

// GetByURL 按 URL 查询文档
func (r *DocumentRepository) GetByURL(ctx context.Context, url string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByURL")
	defer span.End()

	var doc entity.Document
	err := r.client.db.WithContext(ctx).Where("url = ?", url).First(&doc).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document by url: %w", err)
	}
	return &doc, nil
}

// Count 统计文档总数
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Count")
	defer span.End()

	var count int64
	err := r.client.db.WithContext(ctx).Model(&entity.Document{}).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func topicsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
