package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
)

var milvusTracer = otel.Tracer("vectorindex.milvus")

const collectionChunks = "chunks"

// Milvus 远端向量索引后端。
// 元数据以 JSON 文档存入 varchar 字段，维度由集合 Schema 固定，
// 维度迁移由运维显式重建集合，不做本地索引那样的自动丢弃。
type Milvus struct {
	milvus client.Client
	config *config.MilvusConfig
	dim    int

	ensureOnce sync.Once
	ensureErr  error
}

// OpenMilvus 连接 Milvus 并绑定集合维度
func OpenMilvus(ctx context.Context, cfg *config.MilvusConfig, dim int) (*Milvus, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension: %d", dim)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var milvusClient client.Client
	var err error

	if cfg.User != "" && cfg.Password != "" {
		milvusClient, err = client.NewClient(ctx, client.Config{
			Address:  addr,
			Username: cfg.User,
			Password: cfg.Password,
		})
	} else {
		milvusClient, err = client.NewClient(ctx, client.Config{
			Address: addr,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Milvus{
		milvus: milvusClient,
		config: cfg,
		dim:    dim,
	}, nil
}

// collectionName 带前缀的集合名称
func (m *Milvus) collectionName() string {
	if m.config.CollectionPrefix != "" {
		return m.config.CollectionPrefix + "_" + collectionChunks
	}
	return collectionChunks
}

// schema 文档分块集合 Schema
func (m *Milvus) schema() *milvusentity.Schema {
	return &milvusentity.Schema{
		CollectionName: m.collectionName(),
		Description:    "Document chunks for semantic retrieval",
		Fields: []*milvusentity.Field{
			{
				Name:       "id",
				DataType:   milvusentity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "vector",
				DataType:   milvusentity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.dim)},
			},
			{
				Name:       "metadata",
				DataType:   milvusentity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
		},
	}
}

// ensureCollection 确保集合与索引可用（不存在则创建），不做破坏性操作
func (m *Milvus) ensureCollection(ctx context.Context) error {
	m.ensureOnce.Do(func() {
		collName := m.collectionName()

		exists, err := m.milvus.HasCollection(ctx, collName)
		if err != nil {
			m.ensureErr = fmt.Errorf("failed to check collection: %w", err)
			return
		}
		if !exists {
			if err := m.milvus.CreateCollection(ctx, m.schema(), milvusentity.DefaultShardNumber); err != nil {
				m.ensureErr = fmt.Errorf("failed to create collection: %w", err)
				return
			}

			idx, err := milvusentity.NewIndexHNSW(
				milvusentity.L2,
				m.config.HNSWM,
				m.config.HNSWEfConstruction,
			)
			if err != nil {
				m.ensureErr = fmt.Errorf("failed to create index: %w", err)
				return
			}
			if err := m.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
				m.ensureErr = fmt.Errorf("failed to create index: %w", err)
				return
			}
		}

		m.ensureErr = m.milvus.LoadCollection(ctx, collName, false)
	})
	return m.ensureErr
}

// Add 批量插入向量与元数据并落盘
func (m *Milvus) Add(ctx context.Context, vectors [][]float32, metas []entity.ChunkMetadata) error {
	if len(vectors) != len(metas) {
		return ErrLengthMismatch
	}
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != m.dim {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), m.dim)
		}
	}
	if err := m.ensureCollection(ctx); err != nil {
		return err
	}

	ctx, span := milvusTracer.Start(ctx, "milvus.Add",
		trace.WithAttributes(attribute.Int("count", len(metas))))
	defer span.End()

	ids := make([]string, len(metas))
	payloads := make([]string, len(metas))
	for i, meta := range metas {
		ids[i] = uuid.NewString()
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		payloads[i] = string(data)
	}

	idCol := milvusentity.NewColumnVarChar("id", ids)
	vectorCol := milvusentity.NewColumnFloatVector("vector", m.dim, vectors)
	metaCol := milvusentity.NewColumnVarChar("metadata", payloads)

	if _, err := m.milvus.Insert(ctx, m.collectionName(), "", idCol, vectorCol, metaCol); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := m.milvus.Flush(ctx, m.collectionName(), false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to flush chunks: %w", err)
	}
	return nil
}

// Search 近邻检索，L2 距离升序
func (m *Milvus) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), m.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if err := m.ensureCollection(ctx); err != nil {
		return nil, err
	}

	ctx, span := milvusTracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(attribute.Int("top_k", k)))
	defer span.End()

	sp, err := milvusentity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := m.milvus.Search(ctx,
		m.collectionName(),
		nil,
		"",
		[]string{"metadata"},
		[]milvusentity.Vector{milvusentity.FloatVector(query)},
		"vector",
		milvusentity.L2,
		k,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []Hit
	for _, result := range results {
		metaCol, _ := result.Fields.GetColumn("metadata").(*milvusentity.ColumnVarChar)
		for i := 0; i < result.ResultCount; i++ {
			hit := Hit{Distance: result.Scores[i]}
			if metaCol != nil {
				var meta entity.ChunkMetadata
				if err := json.Unmarshal([]byte(metaCol.Data()[i]), &meta); err == nil {
					hit.Meta = meta
				}
			}
			hits = append(hits, hit)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// Len 集合行数（统计值，允许滞后）
func (m *Milvus) Len() int {
	ctx := context.Background()
	if err := m.ensureCollection(ctx); err != nil {
		return 0
	}
	stats, err := m.milvus.GetCollectionStatistics(ctx, m.collectionName())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(stats["row_count"])
	return n
}

// Dim 索引维度
func (m *Milvus) Dim() int {
	return m.dim
}

// Close 关闭 Milvus 连接
func (m *Milvus) Close() error {
	return m.milvus.Close()
}
