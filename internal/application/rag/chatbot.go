package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veille-rag-api/internal/application/search"
	"veille-rag-api/internal/config"
	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/internal/infrastructure/audit"
	"veille-rag-api/internal/infrastructure/llm"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

// 拒答固定文案
const refusalAnswer = "Je ne dispose pas d'assez d'informations fiables dans la base documentaire " +
	"pour répondre précisément à cette question. " +
	"Merci de consulter un expert métier ou d'enrichir la base avec des documents pertinents."

// 合规免责声明，附加在每个生成回答末尾
const complianceDisclaimer = "\n\n---\n" +
	"*⚠️ Cette réponse est générée par IA à partir des documents de veille. " +
	"Elle ne constitue pas un avis réglementaire officiel.*"

// Chatbot 置信度门控的对话式问答。
// 每道门控短路为拒答值而非错误：
// 校验 → 检索 → 置信度门控 → 上下文构建 → 生成 → 返回。
type Chatbot struct {
	engine    *search.Engine
	generator *llm.Generator
	recorder  *audit.Recorder
	config    *config.RagConfig
}

// NewChatbot 创建对话问答服务
func NewChatbot(engine *search.Engine, generator *llm.Generator, recorder *audit.Recorder, cfg *config.RagConfig) *Chatbot {
	return &Chatbot{
		engine:    engine,
		generator: generator,
		recorder:  recorder,
		config:    cfg,
	}
}

// Answer 回答业务问题，只依据已入库文档。
// 拒答是正常返回值（safe=false），不是错误。
func (c *Chatbot) Answer(ctx context.Context, question string, filters entity.SearchFilters, topK int) (*entity.ChatAnswer, error) {
	ctx, span := tracer.Start(ctx, "rag.ChatbotAnswer",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	if topK <= 0 {
		topK = c.config.TopK
	}
	if topK <= 0 {
		topK = 5
	}

	if strings.TrimSpace(question) == "" {
		metrics.AnswersTotal.WithLabelValues("refused_invalid").Inc()
		return c.refuse(question, "Question vide ou invalide."), nil
	}

	// 混合检索，失败时退化为纯向量检索
	results, err := c.engine.HybridSearch(ctx, question, filters,
		c.config.KeywordWeight, c.config.VectorWeight, topK)
	if err != nil {
		logger.Warn(ctx, "hybrid search failed, falling back to vector search", "error", err)
		results, err = c.engine.VectorSearch(ctx, question, filters, topK)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	if len(results) == 0 {
		logger.Warn(ctx, "no results found for chatbot question")
		metrics.AnswersTotal.WithLabelValues("refused_empty").Inc()
		return c.refuse(question, "Aucun document pertinent trouvé."), nil
	}

	// 最低置信度与最少文档数门控
	bestScore := results[0].Score
	if bestScore < c.config.MinScore {
		logger.Warn(ctx, "best score below confidence threshold",
			"best_score", bestScore,
			"threshold", c.config.MinScore,
		)
		metrics.AnswersTotal.WithLabelValues("refused_low_confidence").Inc()
		return c.refuse(question,
			fmt.Sprintf("Score de similarité insuffisant (score max=%.3f).", bestScore)), nil
	}
	if len(results) < c.config.MinDocuments {
		metrics.AnswersTotal.WithLabelValues("refused_low_confidence").Inc()
		return c.refuse(question,
			fmt.Sprintf("Nombre de documents insuffisant (%d trouvés).", len(results))), nil
	}

	// 上下文构建：优先摘要，其次片段
	var contextTexts []string
	for _, r := range results {
		text := r.Summary
		if text == "" {
			text = r.TextSnippet
		}
		if text == "" {
			continue
		}
		title := r.Title
		if title == "" {
			title = "Document"
		}
		contextTexts = append(contextTexts, fmt.Sprintf("[Document: %s]\n%s", title, text))
	}

	if len(contextTexts) == 0 {
		metrics.AnswersTotal.WithLabelValues("refused_empty").Inc()
		return c.refuse(question, "Les documents trouvés ne contiennent pas de texte exploitable."), nil
	}

	prompt := BuildChatPrompt(question, contextTexts)
	answerText, provider, err := c.generator.Generate(ctx, SystemPromptRAG, prompt)
	if err != nil {
		logger.Error(ctx, "chatbot generation failed", err)
		answerText = generationFailedAnswer
	} else {
		logger.Info(ctx, "chatbot answer generated", "provider", provider)
	}

	finalAnswer := strings.TrimSpace(answerText) + complianceDisclaimer
	reason := fmt.Sprintf("Réponse générée via %s à partir de %d documents.", provider, len(results))

	metrics.AnswersTotal.WithLabelValues("answered").Inc()
	if c.recorder != nil {
		c.recorder.Record(audit.NewEvent(
			question, finalAnswer, provider, "chat_generation",
			logger.RequestID(ctx), len(contextTexts),
		))
	}

	return &entity.ChatAnswer{
		Question: question,
		Answer:   finalAnswer,
		Safe:     true,
		Reason:   reason,
		Sources:  buildSources(results),
	}, nil
}

// refuse 构造拒答结果
func (c *Chatbot) refuse(question, reason string) *entity.ChatAnswer {
	return &entity.ChatAnswer{
		Question: question,
		Answer:   refusalAnswer,
		Safe:     false,
		Reason:   reason,
		Sources:  nil,
	}
}

// buildSources 从检索结果构建引用来源
func buildSources(results []entity.SearchResult) []entity.Source {
	var sources []entity.Source
	for _, r := range results {
		if r.URL == "" && r.Title == "" {
			continue
		}
		sources = append(sources, entity.Source{
			Title: r.Title,
			URL:   r.URL,
			Score: r.Score,
		})
	}
	return sources
}
