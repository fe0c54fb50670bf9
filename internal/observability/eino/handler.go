package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"veille-rag-api/pkg/metrics"
)

// startTimeKey 调用开始时间的 Context 键
type startTimeKey struct{}

// newChatModelCallbackHandler 创建模型调用回调处理器。
// 每次生成调用记录追踪 span 与 token 消耗，
// 挂在全局回调链上，覆盖所有经 Eino 发起的模型调用。
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			defer span.End()

			modelName := modelNameFromOutput(output)
			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.LLMTokensTotal.WithLabelValues(modelName, "prompt").Add(float64(usage.PromptTokens))
				metrics.LLMTokensTotal.WithLabelValues(modelName, "completion").Add(float64(usage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.tokens.prompt", usage.PromptTokens),
					attribute.Int("llm.tokens.completion", usage.CompletionTokens),
					attribute.Int("llm.tokens.total", usage.TotalTokens),
				)
			}
			if start, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
				span.SetAttributes(attribute.Float64("llm.duration_seconds", time.Since(start).Seconds()))
			}
			span.SetStatus(codes.Ok, "")
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			span := trace.SpanFromContext(ctx)
			defer span.End()

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return ctx
		},
	}
}

func modelNameFromInput(input *model.CallbackInput) string {
	if input != nil && input.Config != nil && input.Config.Model != "" {
		return input.Config.Model
	}
	return "unknown"
}

func modelNameFromOutput(output *model.CallbackOutput) string {
	if output != nil && output.Config != nil && output.Config.Model != "" {
		return output.Config.Model
	}
	return "unknown"
}
