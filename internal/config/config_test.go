package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"port": 8080, "database": {"host": "localhost"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.RAG.ChunkSize)
	require.Equal(t, 200, cfg.RAG.ChunkOverlap)
	require.Equal(t, 5, cfg.RAG.TopK)
	require.InDelta(t, 0.25, *cfg.RAG.SimilarityThreshold, 1e-9)
	require.Equal(t, 2000, *cfg.Embedding.BackoffMs)
	require.Equal(t, 200, cfg.RAG.PreviewChars)
	require.Equal(t, 32, cfg.Embedding.BatchSize)
	require.Equal(t, 3, cfg.Embedding.MaxAttempts)
	require.Equal(t, int64(10*1024*1024), cfg.Source.MaxFileSize)
	require.Equal(t, DefaultAllowedExtensions, cfg.Source.AllowedExtensions)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "*", cfg.Source.Pattern)
	require.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
port: 9090
database:
  dsn: postgres://u:p@localhost/rag?sslmode=disable
rag:
  chunk_size: 500
  chunk_overlap: 50
source:
  allowed_extensions: ["TXT", "md"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 500, cfg.RAG.ChunkSize)
	require.Equal(t, []string{".txt", ".md"}, cfg.Source.AllowedExtensions)
	require.True(t, cfg.AllowedExtension(".TXT"))
	require.False(t, cfg.AllowedExtension(".pdf"))
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
port: 8080
database:
  host: localhost
embedding:
  backoff_ms: 0
rag:
  similarity_threshold: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, *cfg.Embedding.BackoffMs)
	require.Zero(t, *cfg.RAG.SimilarityThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("DATABASE_URL", "postgres://env/rag")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"port": 8080}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://env/rag", cfg.Database.DSN)
	require.Len(t, cfg.AI.Embed, 1)
	data, ok := cfg.AI.Embed[0].Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "g-key", data["api_key"])
	require.Len(t, cfg.AI.Generate, 1)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	cases := map[string]string{
		"missing port":     `{"database": {"host": "localhost"}}`,
		"missing database": `{"port": 1}`,
		"overlap too big":  `{"port": 1, "database": {"host": "h"}, "rag": {"chunk_size": 100, "chunk_overlap": 100}}`,
		"bad threshold":    `{"port": 1, "database": {"host": "h"}, "rag": {"similarity_threshold": 2}}`,
		"bad store":        `{"port": 1, "database": {"host": "h"}, "file_store": {"type": "ftp"}}`,
		"watch no dir":     `{"port": 1, "database": {"host": "h"}, "source": {"watch": true}}`,
		"bad pattern":      `{"port": 1, "database": {"host": "h"}, "source": {"pattern": "[a-"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.json", body)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}
