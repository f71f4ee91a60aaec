package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsDirectory(t *testing.T) {
	text := Default()
	require.Contains(t, text, "Acuerdo Gubernativo 164-2021")
	require.Contains(t, text, "Red Ecológica")
	require.Contains(t, text, "Recipa (de todo)")
	require.Contains(t, text, "Lo siento, solo puedo responder preguntas")
}

func TestLoad(t *testing.T) {
	text, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), text)

	p := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(p, []byte("  be brief\n"), 0o644))
	text, err = Load(p)
	require.NoError(t, err)
	require.Equal(t, "be brief", text)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))
	_, err = Load(empty)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
