// Package config is the configuration file of the uoa binary.
package config

import (
	"os"
	"uoa-collector/internal/pipeline"
	"uoa-collector/internal/runlog"
	"uoa-collector/internal/scrapers/barchart"
	"uoa-collector/lib/configutil"
)

const DefaultFile = "config.json5"

const (
	EnvStagingDir = "UOA_STAGING_DIR"
	EnvOutputDir  = "UOA_OUTPUT_DIR"
)

type Config struct {
	// Credentials are validated when logging in instead of when loading,
	// so that `merge` and `summary` work without an account.
	Credentials barchart.Credentials `json:"credentials"`
	Barchart    barchart.Config      `json:"barchart"`
	Pipeline    pipeline.Config      `json:"pipeline"`
	History     runlog.Config        `json:"history"`
	// Timezone is the IANA name used to timestamp output files, empty means local time.
	Timezone string `json:"timezone"`
}

// FromEnv applies the environment overrides.
func FromEnv(getenv func(string) string) func(*Config) {
	return func(c *Config) {
		if dir := getenv(EnvStagingDir); dir != "" {
			c.Pipeline.StagingDir = dir
		}
		if dir := getenv(EnvOutputDir); dir != "" {
			c.Pipeline.OutputDir = dir
		}
	}
}

// Load reads `path` and its `.local` sibling, a missing file means every
// default is used.
func Load(path string) (Config, error) {
	return configutil.Load(path, FromEnv(os.Getenv))
}

func (c Config) CredentialProvider() barchart.CredentialProvider {
	return barchart.ConfigCredentials{Config: c.Credentials}
}
