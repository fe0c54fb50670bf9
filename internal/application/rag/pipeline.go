package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/domain/repository"
	"veille-rag-api/internal/infrastructure/audit"
	"veille-rag-api/internal/infrastructure/embedding"
	"veille-rag-api/internal/infrastructure/llm"
	"veille-rag-api/internal/infrastructure/reranker"
	"veille-rag-api/internal/infrastructure/vectorindex"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

var tracer = otel.Tracer("rag")

// 无可用上下文时的固定回答
const noContextAnswer = "Aucun document pertinent n'a été trouvé dans la base de veille."

// 生成链路全部失败时的固定回答
const generationFailedAnswer = "Une erreur est survenue lors de la génération de la réponse. " +
	"Voici les documents pertinents trouvés, veuillez les consulter directement."

// rerankCandidateFactor 重排前的候选召回倍数
const rerankCandidateFactor = 3

// Pipeline 文档入库与问答管线。
// 入库：切分 → 向量化（passage 角色）→ 写索引。
// 问答：查询向量化 → 近邻召回 → 交叉编码重排 → 生成 → 审计。
type Pipeline struct {
	chunker   *Chunker
	embedder  *embedding.Service
	index     vectorindex.Index
	reranker  reranker.Reranker
	generator *llm.Generator
	docs      repository.DocumentRepository
	recorder  *audit.Recorder
	config    *config.RagConfig
}

// NewPipeline 创建 RAG 管线
func NewPipeline(
	chunker *Chunker,
	embedder *embedding.Service,
	index vectorindex.Index,
	rr reranker.Reranker,
	generator *llm.Generator,
	docs repository.DocumentRepository,
	recorder *audit.Recorder,
	cfg *config.RagConfig,
) *Pipeline {
	return &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		reranker:  rr,
		generator: generator,
		docs:      docs,
		recorder:  recorder,
		config:    cfg,
	}
}

// IndexDocuments 文档入库：落库、切分、向量化、写索引。
// 空输入直接返回。索引持久化失败会返回错误，不允许静默丢数据。
func (p *Pipeline) IndexDocuments(ctx context.Context, docs []*entity.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "rag.IndexDocuments",
		trace.WithAttributes(attribute.Int("document_count", len(docs))))
	defer span.End()

	var allChunks []entity.Chunk
	for _, doc := range docs {
		if p.docs != nil {
			if err := p.docs.Upsert(ctx, doc); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to store document: %w", err)
			}
		}
		allChunks = append(allChunks, p.chunker.ChunkDocument(doc)...)
	}

	if len(allChunks) == 0 {
		return nil
	}

	logger.Info(ctx, "indexing document chunks",
		"documents", len(docs),
		"chunks", len(allChunks),
	)

	texts := make([]string, len(allChunks))
	metas := make([]entity.ChunkMetadata, len(allChunks))
	for i, chunk := range allChunks {
		texts[i] = chunk.Text
		metas[i] = chunk.Metadata
	}

	vectors, err := p.embedder.EncodePassages(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode passages: %w", err)
	}

	if err := p.index.Add(ctx, vectors, metas); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to index chunks: %w", err)
	}

	metrics.IndexedChunksTotal.Add(float64(len(allChunks)))
	metrics.IndexSize.Set(float64(p.index.Len()))
	return nil
}

// IndexSize 当前索引中的向量数
func (p *Pipeline) IndexSize() int {
	return p.index.Len()
}

// Retrieve 召回并重排最相关的片段。
// 近邻候选按 topK 的倍数超采样，重排后截断为 topK。
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK int) ([]entity.Chunk, error) {
	if topK <= 0 {
		topK = p.config.TopK
	}
	if topK <= 0 {
		topK = 5
	}

	ctx, span := tracer.Start(ctx, "rag.Retrieve",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	vecs, err := p.embedder.EncodeQueries(ctx, []string{question})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to encode question: %w", err)
	}

	hits, err := p.index.Search(ctx, vecs[0], topK*rerankCandidateFactor)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	passages := make([]string, len(hits))
	for i, hit := range hits {
		passages[i] = hit.Meta.Text
	}

	ranked, err := p.reranker.Rerank(ctx, question, passages, topK)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reranking failed: %w", err)
	}

	chunks := make([]entity.Chunk, 0, len(ranked))
	for _, r := range ranked {
		chunks = append(chunks, entity.Chunk{
			Text:     passages[r.Index],
			Metadata: hits[r.Index].Meta,
		})
	}

	span.SetAttributes(attribute.Int("result_count", len(chunks)))
	return chunks, nil
}

// AnswerQuestion 检索增强问答。
// 无上下文返回固定回答；生成失败返回固定致歉文案而非错误。
// 审计事件异步提交，失败不影响主链路。
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string, topK int) (*entity.RagAnswer, error) {
	ctx, span := tracer.Start(ctx, "rag.AnswerQuestion")
	defer span.End()

	retrieved, err := p.Retrieve(ctx, question, topK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	contextChunks := make([]string, 0, len(retrieved))
	for _, chunk := range retrieved {
		contextChunks = append(contextChunks, chunk.Text)
	}

	// 来源按 URL 去重，保持召回顺序
	sources := dedupSources(retrieved)

	var answer, provider string
	if len(contextChunks) > 0 {
		chunkSources := make([]entity.Source, len(retrieved))
		for i, chunk := range retrieved {
			chunkSources[i] = entity.Source{
				Title: chunk.Metadata.DisplayTitle(),
				URL:   chunk.Metadata.URL,
			}
		}

		prompt := BuildRagPrompt(question, contextChunks, chunkSources)
		answer, provider, err = p.generator.Generate(ctx, SystemPromptRAG, prompt)
		if err != nil {
			logger.Error(ctx, "answer generation failed", err)
			answer = generationFailedAnswer
		} else {
			logger.Info(ctx, "rag answer generated",
				"provider", provider,
				"answer_chars", len(answer),
			)
		}
	} else {
		answer = noContextAnswer
	}

	if p.recorder != nil {
		p.recorder.Record(audit.NewEvent(
			question, answer, provider, "rag_generation",
			logger.RequestID(ctx), len(contextChunks),
		))
	}

	return &entity.RagAnswer{
		Question: question,
		Context:  contextChunks,
		Answer:   answer,
		Sources:  sources,
	}, nil
}

// dedupSources 按 URL 去重并保持插入顺序
func dedupSources(chunks []entity.Chunk) []entity.Source {
	var sources []entity.Source
	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		url := strings.TrimSpace(chunk.Metadata.URL)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		title := chunk.Metadata.Title
		if title == "" {
			title = "Sans titre"
		}
		sources = append(sources, entity.Source{Title: title, URL: url})
	}
	return sources
}
