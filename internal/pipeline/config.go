package pipeline

import "uoa-collector/internal/uoa"

type Config struct {
	// StagingDir is where the browser downloads land, it is created when missing.
	StagingDir string `json:"staging_dir" default:"data/downloads"`
	OutputDir  string `json:"output_dir" default:"data/UOAdataToVisualize"`
	Watermark  string `json:"watermark" default:"Downloaded from Barchart.com"`
	// Preflight probes the login page over plain http before starting the browser.
	Preflight bool `json:"preflight"`
}

func (c Config) watermark() string {
	if c.Watermark == "" {
		return uoa.DefaultWatermark
	}
	return c.Watermark
}
