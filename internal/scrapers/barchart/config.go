package barchart

import (
	"time"
	"uoa-collector/internal/components/staging"
)

// Source is one listing the collector exports.
type Source struct {
	Name string `json:"name" validate:"required,excludesall=/\\"`
	URL  string `json:"url" validate:"required,url"`
}

type Selectors struct {
	Overlay  string `json:"overlay" default:"iframe"`
	Email    string `json:"email" default:"input[name=\"email\"]"`
	Password string `json:"password" default:"input[name=\"password\"]"`
	Submit   string `json:"submit" default:"[type=\"submit\"]"`
	Export   string `json:"export" default:"a[class*=\"download\"]"`
}

// Config is the portal specific part of the collector's configuration.
type Config struct {
	LoginURL string `json:"login_url" default:"https://www.barchart.com/login" validate:"url"`
	// LoginPath is the path of the login page, authentication succeeds once
	// the browser leaves it.
	LoginPath string `json:"login_path" default:"/login"`

	Selectors  Selectors `json:"selectors"`
	UserAgents []string  `json:"user_agents" validate:"min=1,dive,required"`
	Headless   *bool     `json:"headless" default:"true"`
	// ChromePath overrides the browser executable that is looked up on PATH.
	ChromePath string `json:"chrome_path"`

	AuthTimeoutSeconds    int `json:"auth_timeout_seconds" default:"15" validate:"gt=0"`
	SettleDelaySeconds    int `json:"settle_delay_seconds" default:"5" validate:"gte=0"`
	ControlTimeoutSeconds int `json:"control_timeout_seconds" default:"15" validate:"gt=0"`
	PollIntervalMs        int `json:"poll_interval_ms" default:"1000" validate:"gt=0"`
	PollIterations        int `json:"poll_iterations" default:"30" validate:"gt=0"`

	Sources []Source `json:"sources" validate:"min=1,unique=Name,dive"`
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.90 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:40.0) Gecko/20100101 Firefox/40.0",
	"Mozilla/5.0 (Windows NT 6.3; rv:36.0) Gecko/20100101 Firefox/36.0",
}

// DefaultSources are the three unusual activity listings, in collection order.
func DefaultSources() []Source {
	return []Source{
		{Name: "Stocks", URL: "https://www.barchart.com/options/unusual-activity/stocks"},
		{Name: "ETFs", URL: "https://www.barchart.com/options/unusual-activity/etfs"},
		{Name: "Indices", URL: "https://www.barchart.com/options/unusual-activity/indices"},
	}
}

// SetDefaults is called by creasty/defaults for the fields struct tags cannot express.
func (c *Config) SetDefaults() {
	if len(c.UserAgents) == 0 {
		c.UserAgents = append([]string(nil), defaultUserAgents...)
	}
	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
}

func (c Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

func (c Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelaySeconds) * time.Second
}

func (c Config) ControlTimeout() time.Duration {
	return time.Duration(c.ControlTimeoutSeconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// CanonicalNames are the staged file names of every configured source.
func (c Config) CanonicalNames() []string {
	out := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		out[i] = staging.CanonicalName(s.Name)
	}
	return out
}
