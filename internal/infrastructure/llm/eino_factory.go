// Package llm 管理生成模型客户端与降级链
package llm

import (
	"context"
	"fmt"
	"sync"

	"veille-rag-api/internal/config"
	"veille-rag-api/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s is not configured", name)
	}

	// 使用 Eino 的 OpenAI 适配器
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Warmup 按降级顺序预构建各 provider 客户端，返回就绪数量。
// 未配置或构建失败的 provider 记录告警后跳过，不阻塞启动。
func (f *EinoFactory) Warmup(ctx context.Context) int {
	ready := 0
	for _, name := range f.config.FallbackOrder {
		if _, err := f.Get(ctx, name); err != nil {
			logger.Warn(ctx, "llm provider skipped", "provider", name, "error", err)
			continue
		}
		ready++
	}
	return ready
}

// Providers 按降级顺序返回 provider 名称
func (f *EinoFactory) Providers() []string {
	return f.config.FallbackOrder
}

func ptrFloat32(f float32) *float32 {
	return &f
}
