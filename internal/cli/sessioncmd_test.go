package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartThenNoteThenExport(t *testing.T) {
	configPath := testConfig(t, t.TempDir())
	origDir, err := os.Getwd()
	require.NoError(t, err)
	workDir := t.TempDir()
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { os.Chdir(origDir) })

	stdout, stderr, err := runCLI(t, "--config", configPath, "--format", "json", "session", "start", "my-session")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `"Name":"my-session"`)

	_, stderr, err = runCLI(t, "--config", configPath, "session", "note", "a research note")
	require.NoError(t, err, stderr)

	stdout, stderr, err = runCLI(t, "--config", configPath, "--format", "json", "session", "export")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "a research note")
}

func TestSessionNoteWithoutActiveSessionErrors(t *testing.T) {
	configPath := testConfig(t, t.TempDir())
	origDir, err := os.Getwd()
	require.NoError(t, err)
	workDir := t.TempDir()
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { os.Chdir(origDir) })

	_, _, err = runCLI(t, "--config", configPath, "session", "note", "orphan note")
	assert.Error(t, err)
}
