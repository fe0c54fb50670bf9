// Package vectorindex 提供向量索引实现（本地文件索引与 Milvus 后端）
package vectorindex

import (
	"context"
	"errors"

	"veille-rag-api/internal/domain/entity"
)

// 预定义错误
var (
	// ErrDimensionMismatch 写入向量宽度与索引维度不一致
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch 向量数与元数据数不一致
	ErrLengthMismatch = errors.New("vectors and metadatas length mismatch")
)

// Hit 近邻检索命中：元数据 + L2 距离（升序）
type Hit struct {
	Meta     entity.ChunkMetadata
	Distance float32
}

// Index 向量索引接口。
// 约束：追加写入，位置即向量与元数据的唯一关联键，不支持单条删除。
type Index interface {
	// Add 批量追加向量与并行元数据；持久化失败必须报错
	Add(ctx context.Context, vectors [][]float32, metas []entity.ChunkMetadata) error

	// Search 返回至多 min(k, 索引容量) 条结果，按 L2 距离升序
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len 当前索引中的向量条数
	Len() int

	// Dim 索引维度
	Dim() int

	// Close 释放资源
	Close() error
}

// Similarity 将 L2 距离转换为 (0,1] 相似度得分
func Similarity(distance float32) float64 {
	return 1.0 / (1.0 + float64(distance))
}
