package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func readConfig(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestSaveValue_CreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveValue(path, "watch.debounce", "1s"))

	v := readConfig(t, path)
	require.Equal(t, "1s", v.GetString("watch.debounce"))
}

func TestSaveValue_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveValue(path, "strict", "false"))
	require.NoError(t, SaveValue(path, "tracing.sample_rate", "0.25"))
	require.NoError(t, SaveValue(path, "partials_dir", "./partials"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "# jsonpartial configuration")
	require.Contains(t, content, "# Quiet period before re-rendering")

	v := readConfig(t, path)
	require.False(t, v.GetBool("strict"))
	require.Equal(t, 0.25, v.GetFloat64("tracing.sample_rate"))
	require.Equal(t, "./partials", v.GetString("partials_dir"))
	require.Equal(t, "300ms", v.GetString("watch.debounce"), "untouched keys survive")
}

func TestSaveValue_TypedScalars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveValue(path, "strict", "true"))
	require.NoError(t, SaveValue(path, "indent", "a: b"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "strict: true"), "booleans are not quoted")

	v := readConfig(t, path)
	require.True(t, v.GetBool("strict"))
	require.Equal(t, "a: b", v.GetString("indent"), "non-scalar YAML is stored as a string")
}

func TestSaveValue_Errors(t *testing.T) {
	dir := t.TempDir()

	require.Error(t, SaveValue(filepath.Join(dir, "a.yaml"), "", "x"))

	scalarPath := filepath.Join(dir, "scalar.yaml")
	require.NoError(t, os.WriteFile(scalarPath, []byte("strict: true\n"), 0o600))
	err := SaveValue(scalarPath, "strict.nested", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")

	listPath := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(listPath, []byte("- a\n"), 0o600))
	require.Error(t, SaveValue(listPath, "strict", "true"))
}

func TestSaveValue_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, SaveValue(path, "indent", "\t"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	require.Equal(t, "config.yaml", entries[0].Name())
}
