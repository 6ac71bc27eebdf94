package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string   `json:"name" default:"uoa" validate:"required"`
	Retries int      `json:"retries" default:"3" validate:"min=1"`
	Dir     string   `json:"dir"`
	Tags    []string `json:"tags"`
}

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	write(t, path, `{
		// comments are allowed
		name: "base",
		dir: "data",
	}`)
	write(t, filepath.Join(dir, "config.local.json5"), `{ dir: "override" }`)

	config, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "base", config.Name)
	require.Equal(t, "override", config.Dir)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	config, err := Load[testConfig](
		filepath.Join(dir, "config.json5"),
		func(c *testConfig) { c.Dir = "from-env" },
	)
	require.NoError(t, err)
	require.Equal(t, "uoa", config.Name)
	require.Equal(t, 3, config.Retries)
	require.Equal(t, "from-env", config.Dir)
}

func TestLoadValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	write(t, path, `{ retries: -2 }`)

	_, err := Load[testConfig](path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Retries")
}

func TestLocalName(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "config.json5", expected: "config.local.json5"},
		{input: "/a/b/telemetry.json5", expected: "/a/b/telemetry.local.json5"},
		{input: "noext", expected: "noext.local"},
	}
	for _, row := range table {
		require.Equal(t, row.expected, localName(row.input))
	}
}
