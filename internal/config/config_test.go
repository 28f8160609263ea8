package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Retrieval.MaxRounds)
	assert.Equal(t, 5, cfg.Retrieval.ResultBound)
	assert.Equal(t, 30, cfg.Search.TimeoutSeconds)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEEPQUERY_SERVER_PORT", "9100")
	t.Setenv("DEEPQUERY_SEARCH_KNOWLEDGE_BASE_ID", "kb-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "kb-env", cfg.Search.KnowledgeBaseID)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9000
retrieval:
  max_rounds: 5
search:
  knowledge_base_id: kb-42
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
	assert.Equal(t, 5, cfg.Retrieval.MaxRounds)
	assert.Equal(t, "kb-42", cfg.Search.KnowledgeBaseID)
	// Values absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.Retrieval.ResultBound)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
}
