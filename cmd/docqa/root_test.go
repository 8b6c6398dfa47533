package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/perbu/docqa/pkg/composer"
	"github.com/perbu/docqa/pkg/config"
	"github.com/perbu/docqa/pkg/docqa"
	"github.com/perbu/docqa/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const langchainDoc = "LangChain is a framework for building LLM applications. It supports chains, agents, and memory. Install via pip install langchain."

// setupWorkspace writes a document and a config pointing at it and returns
// the config path.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	doc := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(doc, []byte(langchainDoc), 0o644))

	cfg := fmt.Sprintf("document: %s\nindex_path: %s\nchunk_size: 40\noverlap: 10\n",
		doc, filepath.Join(dir, "embeddings", "index.gob"))
	path := filepath.Join(dir, "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	prev := logger.SetOutput(io.Discard)
	t.Cleanup(func() {
		logger.SetOutput(prev)
		logger.SetVerbose(false)
	})
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0")

	assert.Equal(t, "docqa", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)
	for _, name := range []string{"config", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "persistent flag %q", name)
	}

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"init", "build", "ask", "search"})
}

func TestBuildCmd(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Split into 4 chunks (size=40, overlap=10)")
	assert.Contains(t, out, "hash-v1-384")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "embeddings", "index.gob"))
}

func TestBuildCmd_InvalidConfig(t *testing.T) {
	cfg := setupWorkspace(t)
	require.NoError(t, os.WriteFile(cfg, []byte("document: data.txt\nchunk_size: 10\noverlap: 10\n"), 0o644))

	_, err := run(t, "--config", cfg, "build")
	assert.ErrorIs(t, err, docqa.ErrInvalidConfig)
}

func TestAskCmd(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "ask", "How", "do", "I", "install", "LangChain?")
	require.NoError(t, err)
	assert.Contains(t, out, "pip install langchain")
	assert.NotContains(t, out, "Detailed results")
}

func TestAskCmd_Fallback(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "ask", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, composer.DefaultFallback+"\n", out)
}

func TestAskCmd_Details(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "ask", "--details", "How do I install LangChain?")
	require.NoError(t, err)
	assert.Contains(t, out, "Detailed results:")
	// Every chunk is 40 characters, below the detail cut-off.
	assert.Contains(t, out, "no chunk long enough")
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	cfg := setupWorkspace(t)

	_, err := run(t, "--config", cfg, "ask")
	assert.Error(t, err)
}

func TestSearchCmd(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "search", "--top", "2", "pip", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 results:")
	assert.Contains(t, out, "Score: 0.80 | chunk 3 [90:130]")
	assert.NotContains(t, out, langchainDoc[90:130])
}

func TestSearchCmd_FullAndThreshold(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "search", "--full", "--threshold", "0.5", "pip install")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 results:")
	assert.Contains(t, out, langchainDoc[90:130])
}

func TestSearchCmd_Context(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "search", "--top", "1", "--context", "1", "pip install")
	require.NoError(t, err)
	assert.Contains(t, out, ">>> MATCHED CHUNK <<<")
	assert.Contains(t, out, langchainDoc[60:100])
}

func TestSearchCmd_NoResults(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := run(t, "--config", cfg, "search", "--threshold", "0.1", "capital of France")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestSurroundingChunks(t *testing.T) {
	chunks := []docqa.Chunk{{ID: 0}, {ID: 1}, {ID: 2}, {ID: 3}}

	tests := []struct {
		name string
		id   int
		n    int
		want []int
	}{
		{"middle", 1, 1, []int{0, 1, 2}},
		{"clipped at start", 0, 2, []int{0, 1, 2}},
		{"clipped at end", 3, 1, []int{2, 3}},
		{"unknown id", 7, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, c := range surroundingChunks(chunks, tt.id, tt.n) {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitCmd(t *testing.T) {
	setupWorkspace(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "docqa.yaml")
	doc := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(doc, []byte(langchainDoc), 0o644))

	out, err := run(t, "--config", path, "init", "--document", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote config to "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc, cfg.Document)
	assert.Equal(t, config.BackendHash, cfg.Embedder.Backend)

	_, err = run(t, "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "--config", path, "init", "--force", "--backend", "bert")
	assert.ErrorIs(t, err, docqa.ErrInvalidConfig)
}
