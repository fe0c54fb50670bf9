package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veille-rag-api/internal/config"
	"veille-rag-api/pkg/errors"
)

func TestGenerateNoProviderConfigured(t *testing.T) {
	factory := NewEinoFactory(&config.Config{})
	g := NewGenerator(factory)

	_, _, err := g.Generate(context.Background(), "system", "user")
	require.Error(t, err)

	appErr := errors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.CodeProviderNotConfigured, appErr.Code)
}

func TestFactoryWarmupSkipsUnconfigured(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			FallbackOrder: []string{"gemini", "mistral"},
			Providers: map[string]config.LLMProviderConfig{
				// gemini 缺 API key，mistral 不在 Providers 中
				"gemini": {Model: "gemini-2.0-flash"},
			},
		},
	}
	f := NewEinoFactory(cfg)

	// 预热跳过不可用的 provider 而不报错
	assert.Equal(t, 0, f.Warmup(context.Background()))
}

func TestGenerateAllProvidersUnavailable(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			FallbackOrder: []string{"gemini", "openai"},
			Providers: map[string]config.LLMProviderConfig{
				// 缺 API key，provider 视为未配置
				"gemini": {Model: "gemini-2.0-flash"},
				"openai": {Model: "gpt-4o-mini"},
			},
		},
	}
	g := NewGenerator(NewEinoFactory(cfg))

	_, _, err := g.Generate(context.Background(), "system", "user")
	require.Error(t, err)

	appErr := errors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.CodeGenerationUnavailable, appErr.Code)
}

func TestGenerateUnknownProviderInFallbackOrder(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			FallbackOrder: []string{"mistral"},
			Providers:     map[string]config.LLMProviderConfig{},
		},
	}
	g := NewGenerator(NewEinoFactory(cfg))

	_, _, err := g.Generate(context.Background(), "system", "user")
	assert.Error(t, err)
}

func TestFactoryGetUnconfiguredProvider(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.LLMProviderConfig{
				"local": {BaseURL: "http://localhost:11434/v1", Model: "mistral"},
			},
		},
	}
	factory := NewEinoFactory(cfg)

	_, err := factory.Get(context.Background(), "local")
	assert.Error(t, err)

	_, err = factory.Get(context.Background(), "inconnu")
	assert.Error(t, err)
}

func TestFactoryProvidersOrder(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			FallbackOrder: []string{"gemini", "openai", "local"},
		},
	}
	factory := NewEinoFactory(cfg)

	assert.Equal(t, []string{"gemini", "openai", "local"}, factory.Providers())
}
