package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolate points the loader at an empty directory so the repository's own
// configs/ and .env never leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV_FILE", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Knowledge.TopK)
	require.Equal(t, 0.85, cfg.Knowledge.Threshold)
	require.Equal(t, 10*time.Second, cfg.Knowledge.QueryTimeout)
	require.Equal(t, "memory", cfg.Knowledge.Index.Backend)
	require.Equal(t, "trigram", cfg.Embedding.Provider)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
knowledge:
  topK: 5
  threshold: 0.9
  index:
    backend: qdrant
support:
  ratings: false
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("KNOWLEDGE_THRESHOLD", "0.8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Knowledge.TopK)
	require.Equal(t, 0.8, cfg.Knowledge.Threshold)
	require.Equal(t, "qdrant", cfg.Knowledge.Index.Backend)
	require.False(t, cfg.Support.Ratings)
	require.True(t, cfg.Support.OperatorHandoff)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("API_KEY=from-dotenv\nKNOWLEDGE_TOP_K=7\n"), 0o600))
	t.Setenv("KNOWLEDGE_TOP_K", "4")
	t.Setenv("API_KEY", "")
	require.NoError(t, os.Unsetenv("API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.LLM.APIKey)
	require.Equal(t, 4, cfg.Knowledge.TopK)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	isolate(t)
	t.Setenv("ENV_FILE", "missing.env")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"threshold above one":  func(c *Config) { c.Knowledge.Threshold = 1.2 },
		"zero top k":           func(c *Config) { c.Knowledge.TopK = 0 },
		"unknown backend":      func(c *Config) { c.Knowledge.Index.Backend = "faiss" },
		"postgres without dsn": func(c *Config) { c.Knowledge.Index.Backend = "postgres" },
		"openai without key":   func(c *Config) { c.Embedding.Provider = "openai" },
		"unknown llm":          func(c *Config) { c.LLM.Provider = "gigachat" },
		"valkey without addr":  func(c *Config) { c.Sessions.Valkey.Enabled = true },
		"archive without host": func(c *Config) { c.Storage.Archive.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := defaultConfig()
		mutate(cfg)
		require.Error(t, cfg.Validate(), name)
	}
	require.NoError(t, defaultConfig().Validate())
}
