package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a fully offline configuration and returns its path.
func writeTestConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weavelens.yaml")
	cfg := fmt.Sprintf(`store:
  backend: embedded
  data_dir: %s
embeddings:
  provider: static
  dimensions: 16
ocr:
  enabled: false
`, dataDir)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

// runCommand executes the CLI with args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "weavelens")
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Contains(t, parsed, "version")
	assert.Contains(t, parsed, "commit")
}

func TestScanCommand_IndexesAndReportsStats(t *testing.T) {
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"),
		[]byte("scan command test content"), 0o644))

	cfgPath := writeTestConfig(t, t.TempDir())
	out, err := runCommand(t, "--config", cfgPath, "--json", "scan", docs)
	require.NoError(t, err)

	var stats struct {
		FilesSeen     int `json:"files_seen"`
		FilesIndexed  int `json:"files_indexed"`
		ChunksIndexed int `json:"chunks_indexed"`
		Skipped       int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.FilesSeen)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestScanThenSearchAcrossInvocations(t *testing.T) {
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "note.txt"),
		[]byte("terraform manages infrastructure as code"), 0o644))

	cfgPath := writeTestConfig(t, t.TempDir())

	_, err := runCommand(t, "--config", cfgPath, "scan", docs)
	require.NoError(t, err)

	out, err := runCommand(t, "--config", cfgPath, "search", "--mode", "lexical", "terraform")
	require.NoError(t, err)
	assert.Contains(t, out, "terraform")
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	_, err := runCommand(t, "--config", cfgPath, "search")
	assert.Error(t, err)
}

func TestAskCommand_NoIndexedContent(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	out, err := runCommand(t, "--config", cfgPath, "ask", "anything at all")
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant context")
}

func TestStatusCommand(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	out, err := runCommand(t, "--config", cfgPath, "--json", "status")
	require.NoError(t, err)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "embedded", report.Backend)
	assert.True(t, report.Ready)
	assert.Equal(t, "static-hash", report.Model)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("  short\n text ", 50))
	long := snippet("one two three four five", 9)
	assert.Equal(t, "one two t...", long)
}
