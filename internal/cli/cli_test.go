package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig writes a minimal config file pointing at an isolated
// SQLite database and corpus directory under t.TempDir(), returning
// its path.
func testConfig(t *testing.T, corpusRoot string) string {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.db")
	glossaryPath := filepath.Join(dir, "glossary.yaml")
	require.NoError(t, os.WriteFile(glossaryPath, []byte("terms: []\n"), 0o644))

	configPath := filepath.Join(dir, "config.yaml")
	content := "corpus_root: " + corpusRoot + "\n" +
		"store_path: " + storePath + "\n" +
		"glossary_path: " + glossaryPath + "\n" +
		"checkpoint_path: " + filepath.Join(dir, "checkpoint.json") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errBuf bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errBuf.String(), err
}
