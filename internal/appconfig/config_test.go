package appconfig_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webxcore/webx/internal/appconfig"
	"github.com/webxcore/webx/internal/store"
)

func TestWithDefault_Build_MatchesDocumentedDefaults(t *testing.T) {
	cfg, err := appconfig.WithDefault().Build()
	require.NoError(t, err)

	assert.Equal(t, "data/webx.sqlite", cfg.DBPath())
	assert.Equal(t, "webx-crawler/1.0", cfg.UserAgent())
	assert.Equal(t, time.Second, cfg.PollInterval())

	opts := cfg.DefaultOptions()
	assert.Equal(t, 100, opts.MaxPages)
	assert.Equal(t, 2, opts.MaxDepth)
	assert.Equal(t, "compact", opts.Mode)
	assert.True(t, opts.RespectRobots)
	assert.Equal(t, 500, opts.PerDomainDelayMs)
	assert.True(t, opts.SeedFromSitemaps)
	assert.Equal(t, 200, opts.MaxSitemapUrls)
	assert.True(t, opts.AdaptiveDelay)
}

func TestConfig_WithEnv_OverlaysSetVariablesOnly(t *testing.T) {
	t.Setenv(appconfig.EnvDBPath, "/tmp/custom.sqlite")
	t.Setenv(appconfig.EnvUserAgent, "custom-agent/2.0")
	t.Setenv(appconfig.EnvPollMs, "2500")

	cfg, err := appconfig.WithDefault().WithEnv().Build()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.sqlite", cfg.DBPath())
	assert.Equal(t, "custom-agent/2.0", cfg.UserAgent())
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval())
}

func TestConfig_WithEnv_IgnoresUnparseablePollMs(t *testing.T) {
	t.Setenv(appconfig.EnvPollMs, "not-a-number")

	cfg, err := appconfig.WithDefault().WithEnv().Build()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.PollInterval())
}

func TestConfig_Build_RejectsEmptyDBPath(t *testing.T) {
	_, err := appconfig.WithDefault().WithDBPath("").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, appconfig.ErrInvalidConfig)
}

func TestConfig_Build_RejectsEmptyUserAgent(t *testing.T) {
	_, err := appconfig.WithDefault().WithUserAgent("").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, appconfig.ErrInvalidConfig)
}

func TestConfig_Build_RejectsNonPositivePollInterval(t *testing.T) {
	_, err := appconfig.WithDefault().WithPollInterval(0).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, appconfig.ErrInvalidConfig)
}

func TestConfig_ResolveOptions_FillsOmittedFieldsOnly(t *testing.T) {
	cfg, err := appconfig.WithDefault().Build()
	require.NoError(t, err)

	maxPages := 500
	mode := "full"
	respectRobots := false

	resolved := cfg.ResolveOptions(appconfig.StartOptions{
		MaxPages:      &maxPages,
		Mode:          &mode,
		RespectRobots: &respectRobots,
		AllowDomains:  []string{"example.com"},
	})

	assert.Equal(t, 500, resolved.MaxPages)
	assert.Equal(t, "full", resolved.Mode)
	assert.False(t, resolved.RespectRobots)
	assert.Equal(t, []string{"example.com"}, resolved.AllowDomains)

	// Everything left nil falls back to the process default.
	assert.Equal(t, 2, resolved.MaxDepth)
	assert.Equal(t, 500, resolved.PerDomainDelayMs)
	assert.True(t, resolved.SeedFromSitemaps)
	assert.Equal(t, 200, resolved.MaxSitemapUrls)
	assert.True(t, resolved.AdaptiveDelay)
}

func TestConfig_ResolveOptions_AllNil_ReturnsProcessDefaults(t *testing.T) {
	cfg, err := appconfig.WithDefault().Build()
	require.NoError(t, err)

	resolved := cfg.ResolveOptions(appconfig.StartOptions{})
	assert.Equal(t, cfg.DefaultOptions().MaxPages, resolved.MaxPages)
	assert.Equal(t, cfg.DefaultOptions().Mode, resolved.Mode)

	var expected store.CrawlOptions
	expected = cfg.DefaultOptions()
	assert.Equal(t, expected.RespectRobots, resolved.RespectRobots)
}
