package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvWithDefault(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "from-env")

	assert.Equal(t, "from-env", expandEnv("${TEST_EXPAND_SET:fallback}"))
	assert.Equal(t, "fallback", expandEnv("${TEST_EXPAND_UNSET:fallback}"))
	assert.Equal(t, "host: from-env port: 5432",
		expandEnv("host: ${TEST_EXPAND_SET} port: ${TEST_EXPAND_PORT:5432}"))
}

func TestExpandEnvEmptyDefault(t *testing.T) {
	// ${VAR:} 形式默认值为空串
	assert.Equal(t, "", expandEnv("${TEST_EXPAND_UNSET_EMPTY:}"))
}

func TestExpandEnvNoDefaultKeepsPlaceholder(t *testing.T) {
	assert.Equal(t, "${TEST_EXPAND_MISSING}", expandEnv("${TEST_EXPAND_MISSING}"))
}

func TestExpandEnvEnvWinsOverDefault(t *testing.T) {
	t.Setenv("TEST_EXPAND_PRIORITY", "env-value")
	assert.Equal(t, "env-value", expandEnv("${TEST_EXPAND_PRIORITY:default-value}"))
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))

	content := `
app:
  name: veille-rag-api
  env: test
vector:
  backend: local
  local:
    dir: ${TEST_VECTOR_DIR:data/vector_store}
embedding:
  model: intfloat/multilingual-e5-large
rag:
  chunk_size: 300
  keyword_weight: 0.3
  vector_weight: 0.7
llm:
  fallback_order:
    - gemini
    - openai
  providers:
    gemini:
      model: gemini-2.0-flash
audit:
  stream: "veille:audit"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(content), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("TEST_VECTOR_DIR", "/tmp/vectors")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "veille-rag-api", cfg.App.Name)
	assert.Equal(t, "local", cfg.Vector.Backend)
	assert.Equal(t, "/tmp/vectors", cfg.Vector.Local.Dir)
	assert.Equal(t, "intfloat/multilingual-e5-large", cfg.Embedding.Model)
	assert.Equal(t, 300, cfg.Rag.ChunkSize)
	assert.InDelta(t, 0.3, cfg.Rag.KeywordWeight, 1e-9)
	assert.InDelta(t, 0.7, cfg.Rag.VectorWeight, 1e-9)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.LLM.FallbackOrder)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Providers["gemini"].Model)
	assert.Equal(t, "veille:audit", cfg.Audit.Stream)

	// setDefaults 兜底未显式配置的键
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, "localhost", cfg.Database.Postgres.Host)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
}

func TestLoadMissingConfigFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	_, err = Load()
	assert.Error(t, err)
}
