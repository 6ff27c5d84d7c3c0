package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/config"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless:             true,
		NoSandbox:            true,
		BrowserBin:           os.Getenv("AUTOSCOUT_BROWSER_BIN"),
		NavigationTimeout:    20 * time.Second,
		BlockedResourceTypes: []string{"Image", "Font", "Media"},
	}
}

func TestStartWithMissingBinary(t *testing.T) {
	cfg := testBrowserConfig()
	cfg.BrowserBin = "/nonexistent/chromium"
	c := New(cfg, nil)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrKindLaunch))
	assert.NoError(t, c.Stop())
}

// TestControllerLifecycle drives a real Chromium. It runs only when
// AUTOSCOUT_BROWSER_TEST is set, since CI images ship without a browser.
func TestControllerLifecycle(t *testing.T) {
	if os.Getenv("AUTOSCOUT_BROWSER_TEST") == "" {
		t.Skip("AUTOSCOUT_BROWSER_TEST not set")
	}
	ctx := context.Background()
	c := New(testBrowserConfig(), nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	assert.ErrorIs(t, c.Start(ctx), ErrAlreadyStarted)

	page := `data:text/html,<html><body><div style="height:3000px">x</div><button id="next">n</button></body></html>`
	require.NoError(t, c.Navigate(ctx, page))
	assert.False(t, c.DetectChallenge(ctx))

	clicked, err := c.Click(ctx, "#next")
	require.NoError(t, err)
	assert.True(t, clicked)

	clicked, err = c.Click(ctx, "#missing")
	require.NoError(t, err)
	assert.False(t, clicked)

	require.NoError(t, c.ScrollToBottom(ctx))
	require.NoError(t, c.Stop())
	_, err = c.HTML(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}
