package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDiscoversFilesUnderCorpusRoot(t *testing.T) {
	corpusRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(corpusRoot, "lecture.txt"), []byte("hello world"), 0o644))
	configPath := testConfig(t, corpusRoot)

	stdout, stderr, err := runCLI(t, "--config", configPath, "--format", "json", "ingest", "scan")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Discovered")
}

func TestScanRejectsUnknownFormat(t *testing.T) {
	configPath := testConfig(t, t.TempDir())
	_, _, err := runCLI(t, "--config", configPath, "--format", "xml", "ingest", "scan")
	assert.Error(t, err)
}
