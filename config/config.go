package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultStartURL is the unfiltered all-brands result list.
const DefaultStartURL = "https://www.autoscout24.ch/de/autos/alle-marken"

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Crawl   CrawlConfig
	Output  OutputConfig
	Store   StoreConfig
	Control ControlConfig
	Webhook WebhookConfig
	Log     LogConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. Challenges can only
	// be solved by hand in a visible window, so the default is false.
	Headless bool // default: false

	// Proxy is an optional upstream proxy URL.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent overrides the browser user agent.
	UserAgent string

	// NavigationTimeout bounds a single navigate or settle wait.
	NavigationTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers drops requests to known ad and analytics hosts.
	BlockTrackers bool // default: false
}

// CrawlConfig controls the crawl loop.
type CrawlConfig struct {
	// StartURL is the first result page.
	StartURL string

	// BaseURL absolutises relative listing links.
	BaseURL string // default: "https://www.autoscout24.ch"

	// TargetCount stops the crawl once this many records are collected.
	TargetCount int // default: 100

	// PerPage is the listing count the site is expected to render per page.
	PerPage int // default: 20

	// DelayMin and DelayMax bound the random pause before each extraction.
	DelayMin time.Duration // default: 3s
	DelayMax time.Duration // default: 7s

	// MaxConsecutiveFailures aborts the crawl once reached.
	MaxConsecutiveFailures int // default: 3

	// MaxPages is a hard pagination ceiling; 0 means unlimited.
	MaxPages int // default: 0

	// PageRetries is the number of backoff retries for a failing page.
	PageRetries int // default: 2

	// BackoffInitial and BackoffMax shape the exponential retry backoff.
	BackoffInitial time.Duration // default: 2s
	BackoffMax     time.Duration // default: 30s

	// MinPageInterval is a floor between page requests, on top of jitter. 0 disables it.
	MinPageInterval time.Duration // default: 0

	// Resume skips URLs already present in the output file and the seen store.
	Resume bool // default: false
}

// OutputConfig controls the tabular output file.
type OutputConfig struct {
	// Path is the CSV file the crawl appends to.
	Path string // default: "autoscout_listings.csv"
}

// StoreConfig controls the optional secondary sinks.
type StoreConfig struct {
	// PostgresDSN enables the Postgres sink when set.
	PostgresDSN string

	// RedisURL enables the Redis stream sink and the shared seen set when set.
	RedisURL string

	// RedisStream is the stream key records are published to.
	RedisStream string // default: "autoscout:listings"

	// RedisSeenKey is the set holding already-collected listing URLs.
	RedisSeenKey string // default: "autoscout:seen"
}

// ControlConfig controls the local control server.
type ControlConfig struct {
	// Addr enables the control server when set, e.g. "127.0.0.1:8090".
	Addr string

	// APIKeys protects the control endpoints when non-empty.
	APIKeys []string
}

// WebhookConfig controls the completion notification.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from the environment, after merging an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Browser: BrowserConfig{
			Headless:          envBoolOr("AUTOSCOUT_HEADLESS", false),
			Proxy:             os.Getenv("AUTOSCOUT_PROXY"),
			NoSandbox:         envBoolOr("AUTOSCOUT_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("AUTOSCOUT_BROWSER_BIN"),
			UserAgent:         os.Getenv("AUTOSCOUT_USER_AGENT"),
			NavigationTimeout: envDurationOr("AUTOSCOUT_NAV_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("AUTOSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("AUTOSCOUT_BLOCK_TRACKERS", false),
		},
		Crawl: CrawlConfig{
			StartURL:               envOr("AUTOSCOUT_START_URL", DefaultStartURL),
			BaseURL:                envOr("AUTOSCOUT_BASE_URL", "https://www.autoscout24.ch"),
			TargetCount:            envIntOr("AUTOSCOUT_TARGET", 100),
			PerPage:                envIntOr("AUTOSCOUT_PER_PAGE", 20),
			DelayMin:               envDurationOr("AUTOSCOUT_DELAY_MIN", 3*time.Second),
			DelayMax:               envDurationOr("AUTOSCOUT_DELAY_MAX", 7*time.Second),
			MaxConsecutiveFailures: envIntOr("AUTOSCOUT_MAX_FAILURES", 3),
			MaxPages:               envIntOr("AUTOSCOUT_MAX_PAGES", 0),
			PageRetries:            envIntOr("AUTOSCOUT_PAGE_RETRIES", 2),
			BackoffInitial:         envDurationOr("AUTOSCOUT_BACKOFF_INITIAL", 2*time.Second),
			BackoffMax:             envDurationOr("AUTOSCOUT_BACKOFF_MAX", 30*time.Second),
			MinPageInterval:        envDurationOr("AUTOSCOUT_MIN_PAGE_INTERVAL", 0),
			Resume:                 envBoolOr("AUTOSCOUT_RESUME", false),
		},
		Output: OutputConfig{
			Path: envOr("AUTOSCOUT_OUTPUT", "autoscout_listings.csv"),
		},
		Store: StoreConfig{
			PostgresDSN:  os.Getenv("AUTOSCOUT_POSTGRES_DSN"),
			RedisURL:     os.Getenv("AUTOSCOUT_REDIS_URL"),
			RedisStream:  envOr("AUTOSCOUT_REDIS_STREAM", "autoscout:listings"),
			RedisSeenKey: envOr("AUTOSCOUT_REDIS_SEEN_KEY", "autoscout:seen"),
		},
		Control: ControlConfig{
			Addr:    os.Getenv("AUTOSCOUT_CONTROL_ADDR"),
			APIKeys: envSliceOr("AUTOSCOUT_API_KEYS", nil),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("AUTOSCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("AUTOSCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("AUTOSCOUT_LOG_LEVEL", "info"),
			Format: envOr("AUTOSCOUT_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects settings the crawl loop cannot run with.
func (c *Config) Validate() error {
	cr := c.Crawl
	switch {
	case cr.StartURL == "":
		return fmt.Errorf("start url is required")
	case cr.TargetCount < 0:
		return fmt.Errorf("target count must be >= 0, got %d", cr.TargetCount)
	case cr.PerPage < 1:
		return fmt.Errorf("per-page must be >= 1, got %d", cr.PerPage)
	case cr.DelayMin < 0 || cr.DelayMax < cr.DelayMin:
		return fmt.Errorf("invalid delay range %s..%s", cr.DelayMin, cr.DelayMax)
	case cr.MaxConsecutiveFailures < 1:
		return fmt.Errorf("max consecutive failures must be >= 1, got %d", cr.MaxConsecutiveFailures)
	case cr.MaxPages < 0:
		return fmt.Errorf("max pages must be >= 0, got %d", cr.MaxPages)
	case cr.PageRetries < 0:
		return fmt.Errorf("page retries must be >= 0, got %d", cr.PageRetries)
	case cr.BackoffInitial <= 0 || cr.BackoffMax < cr.BackoffInitial:
		return fmt.Errorf("invalid backoff bounds %s..%s", cr.BackoffInitial, cr.BackoffMax)
	case c.Browser.NavigationTimeout <= 0:
		return fmt.Errorf("navigation timeout must be > 0, got %s", c.Browser.NavigationTimeout)
	case c.Output.Path == "":
		return fmt.Errorf("output path is required")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
