package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveReturnsFalseWhenUnset(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "marker")}
	_, ok := m.Active()
	assert.False(t, ok)
}

func TestSetActiveThenActiveRoundTrips(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "marker")}
	require.NoError(t, m.SetActive("sess-1"))

	id, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, "sess-1", id)
}

func TestEnvVarTakesPrecedenceOverFile(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "marker")}
	require.NoError(t, m.SetActive("file-session"))
	t.Setenv(EnvVar, "env-session")

	id, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, "env-session", id)
}

func TestClearRemovesMarker(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "marker")}
	require.NoError(t, m.SetActive("sess-1"))
	require.NoError(t, m.Clear())

	_, ok := m.Active()
	assert.False(t, ok)
}

func TestClearOnMissingMarkerIsNotAnError(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "marker")}
	assert.NoError(t, m.Clear())
}
