package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTOSCOUT_TARGET", "")
	t.Setenv("AUTOSCOUT_DELAY_MIN", "")
	t.Setenv("AUTOSCOUT_DELAY_MAX", "")

	cfg := Load()
	assert.Equal(t, 100, cfg.Crawl.TargetCount)
	assert.Equal(t, 3*time.Second, cfg.Crawl.DelayMin)
	assert.Equal(t, 7*time.Second, cfg.Crawl.DelayMax)
	assert.Equal(t, 3, cfg.Crawl.MaxConsecutiveFailures)
	assert.Equal(t, 0, cfg.Crawl.MaxPages)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTOSCOUT_TARGET", "250")
	t.Setenv("AUTOSCOUT_DELAY_MIN", "1s")
	t.Setenv("AUTOSCOUT_DELAY_MAX", "2s")
	t.Setenv("AUTOSCOUT_BLOCKED_RESOURCES", "Image, Media ,")
	t.Setenv("AUTOSCOUT_RESUME", "true")
	t.Setenv("AUTOSCOUT_MAX_FAILURES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 250, cfg.Crawl.TargetCount)
	assert.Equal(t, time.Second, cfg.Crawl.DelayMin)
	assert.Equal(t, 2*time.Second, cfg.Crawl.DelayMax)
	assert.Equal(t, []string{"Image", "Media"}, cfg.Browser.BlockedResourceTypes)
	assert.True(t, cfg.Crawl.Resume)
	assert.Equal(t, 3, cfg.Crawl.MaxConsecutiveFailures, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero target is allowed", func(c *Config) { c.Crawl.TargetCount = 0 }, false},
		{"negative target", func(c *Config) { c.Crawl.TargetCount = -1 }, true},
		{"inverted delay", func(c *Config) { c.Crawl.DelayMin = 5 * time.Second; c.Crawl.DelayMax = time.Second }, true},
		{"zero failure threshold", func(c *Config) { c.Crawl.MaxConsecutiveFailures = 0 }, true},
		{"negative page cap", func(c *Config) { c.Crawl.MaxPages = -2 }, true},
		{"empty output", func(c *Config) { c.Output.Path = "" }, true},
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }, true},
		{"negative navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = -time.Second }, true},
		{"zero backoff", func(c *Config) { c.Crawl.BackoffInitial = 0 }, true},
		{"backoff max below initial", func(c *Config) { c.Crawl.BackoffMax = time.Millisecond }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
