// Package config resolves run configuration from flags, environment
// variables and defaults, in that precedence order -- the same
// flags-then-env-then-default resolution eutils' index.go applies to
// EDIRECT_PUBMED_MASTER / EDIRECT_PUBMED_WORKING, generalized into one place
// instead of scattered os.LookupEnv calls.
package config

import "os"

const (
	envDataDir = "PMCPIPELINE_DATA_DIR"
	envAPIKey  = "PMCPIPELINE_API_KEY"
	envLogDir  = "PMCPIPELINE_LOG_DIR"

	defaultDataDir = "./pmcpipeline_data"
)

// Config is the resolved set of settings shared across every pipeline stage.
type Config struct {
	DataDir string
	APIKey  string
	LogDir  string
	NJobs   int
	BaseURL string
}

// Option mutates a Config during Resolve; used by CLI flag bindings so a
// flag only overrides a field when the user actually set it.
type Option func(*Config)

// WithDataDir overrides the data directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.DataDir = dir
		}
	}
}

// WithAPIKey overrides the Entrez API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		if key != "" {
			c.APIKey = key
		}
	}
}

// WithLogDir overrides the log directory.
func WithLogDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.LogDir = dir
		}
	}
}

// WithNJobs overrides the worker count. -1 means "all cores".
func WithNJobs(n int) Option {
	return func(c *Config) {
		if n != 0 {
			c.NJobs = n
		}
	}
}

// Resolve builds a Config from environment variables and defaults, then
// applies opts (normally CLI flag values) on top.
func Resolve(opts ...Option) Config {
	c := Config{
		DataDir: envOr(envDataDir, defaultDataDir),
		APIKey:  os.Getenv(envAPIKey),
		LogDir:  os.Getenv(envLogDir),
		NJobs:   1,
		BaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
