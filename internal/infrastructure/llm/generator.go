package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"veille-rag-api/pkg/errors"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

// Generator 按配置的降级顺序依次尝试各 provider 生成回答。
// 某个 provider 未配置或调用失败时继续尝试下一个，
// 全部失败才返回错误。
type Generator struct {
	factory *EinoFactory
}

func NewGenerator(factory *EinoFactory) *Generator {
	return &Generator{factory: factory}
}

// Generate 生成回答，返回回答文本与实际使用的 provider 名称
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	providers := g.factory.Providers()
	if len(providers) == 0 {
		return "", "", errors.New(errors.CodeProviderNotConfigured, "no LLM provider configured")
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	var lastErr error
	for _, name := range providers {
		chatModel, err := g.factory.Get(ctx, name)
		if err != nil {
			logger.Debug(ctx, "llm provider unavailable", "provider", name, "error", err)
			lastErr = err
			continue
		}

		start := time.Now()
		resp, err := chatModel.Generate(ctx, messages)
		metrics.LLMCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(name, "error").Inc()
			logger.Warn(ctx, "llm generation failed, trying next provider",
				"provider", name,
				"error", err,
			)
			lastErr = err
			continue
		}
		if resp == nil || resp.Content == "" {
			metrics.LLMCallTotal.WithLabelValues(name, "empty").Inc()
			lastErr = fmt.Errorf("provider %s returned empty response", name)
			continue
		}

		metrics.LLMCallTotal.WithLabelValues(name, "success").Inc()
		return resp.Content, name, nil
	}

	return "", "", errors.Wrap(lastErr, errors.CodeGenerationUnavailable, "all LLM providers failed")
}
