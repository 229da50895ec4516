package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Defaults(t *testing.T) {
	t.Setenv(envDataDir, "")
	t.Setenv(envAPIKey, "")
	t.Setenv(envLogDir, "")

	c := Resolve()
	assert.Equal(t, defaultDataDir, c.DataDir)
	assert.Empty(t, c.APIKey)
	assert.Empty(t, c.LogDir)
	assert.Equal(t, 1, c.NJobs)
	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", c.BaseURL)
}

func TestResolve_ReadsEnvironment(t *testing.T) {
	t.Setenv(envDataDir, "/data/pmc")
	t.Setenv(envAPIKey, "secret-key")
	t.Setenv(envLogDir, "/var/log/pmc")

	c := Resolve()
	assert.Equal(t, "/data/pmc", c.DataDir)
	assert.Equal(t, "secret-key", c.APIKey)
	assert.Equal(t, "/var/log/pmc", c.LogDir)
}

func TestResolve_OptionsOverrideEnvironment(t *testing.T) {
	t.Setenv(envDataDir, "/data/pmc")
	t.Setenv(envAPIKey, "env-key")
	t.Setenv(envLogDir, "/var/log/pmc")

	c := Resolve(WithDataDir("/flag/data"), WithAPIKey("flag-key"), WithLogDir("/flag/log"), WithNJobs(4))
	assert.Equal(t, "/flag/data", c.DataDir)
	assert.Equal(t, "flag-key", c.APIKey)
	assert.Equal(t, "/flag/log", c.LogDir)
	assert.Equal(t, 4, c.NJobs)
}

func TestWithOptions_EmptyOrZeroValuesDoNotOverride(t *testing.T) {
	t.Setenv(envDataDir, "/data/pmc")
	t.Setenv(envAPIKey, "")
	t.Setenv(envLogDir, "")

	c := Resolve(WithDataDir(""), WithAPIKey(""), WithLogDir(""), WithNJobs(0))
	assert.Equal(t, "/data/pmc", c.DataDir)
	assert.Empty(t, c.APIKey)
	assert.Equal(t, 1, c.NJobs)
}

func TestWithNJobs_NegativeOneIsPreserved(t *testing.T) {
	c := Resolve(WithNJobs(-1))
	assert.Equal(t, -1, c.NJobs)
}
