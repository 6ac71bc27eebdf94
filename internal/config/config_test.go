package config

import (
	"os"
	"path/filepath"
	"testing"
	"uoa-collector/lib/configutil"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// shared settings
		credentials: { username: "trader@example.com" },
		barchart: { poll_iterations: 10 },
		pipeline: { output_dir: "out" },
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		credentials: { password: "hunter2" },
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "trader@example.com", cfg.Credentials.Username)
	require.Equal(t, "hunter2", cfg.Credentials.Password)
	require.Equal(t, 10, cfg.Barchart.PollIterations)
	require.Equal(t, 15, cfg.Barchart.AuthTimeoutSeconds)
	require.Len(t, cfg.Barchart.Sources, 3)
	require.Equal(t, "out", cfg.Pipeline.OutputDir)
	require.Equal(t, "data/downloads", cfg.Pipeline.StagingDir)
	require.Equal(t, "uoa-runs.db", cfg.History.File)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("BARCHART_USERNAME", "")
	t.Setenv("BARCHART_PASSWORD", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://www.barchart.com/login", cfg.Barchart.LoginURL)

	// missing credentials only fail once they are asked for
	_, err = cfg.CredentialProvider().Credentials()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{EnvStagingDir: "/tmp/staging"}

	var cfg Config
	require.NoError(t, configutil.Finalize(&cfg, FromEnv(func(key string) string { return env[key] })))
	require.Equal(t, "/tmp/staging", cfg.Pipeline.StagingDir)
	require.Equal(t, "data/UOAdataToVisualize", cfg.Pipeline.OutputDir)
}
