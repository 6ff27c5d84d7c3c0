package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/api"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/browser"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/config"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/crawler"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/extractor"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/navigator"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/storage"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/webhook"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// webhookTimeout bounds notification including its retries.
const webhookTimeout = 90 * time.Second

func main() {
	cfg := config.Load()
	root := newRootCmd(cfg)

	code := 0
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return models.NewCrawlError(models.ErrKindInvalidConfig, err.Error(), nil)
		}
		initLogger(cfg.Log)
		code = run(cmd.Context(), cfg)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

// newRootCmd binds flags onto cfg. Flags override the environment.
func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "autoscout",
		Short:         "Crawl used-car listings from AutoScout24 into a CSV file",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `autoscout drives a real Chromium session through the AutoScout24 result
list, extracts one record per listing and appends them to a CSV file.

When the site shows a bot challenge the crawl pauses. Solve it in the browser
window, then press Enter (or POST /api/v1/crawl/resume on the control server).

Exit status: 0 goal met or site exhausted, 2 aborted with partial data,
1 browser could not start or the output could not be written.`,
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Crawl.StartURL, "url", cfg.Crawl.StartURL, "first result page")
	f.IntVar(&cfg.Crawl.TargetCount, "target", cfg.Crawl.TargetCount, "stop after this many records")
	f.IntVar(&cfg.Crawl.PerPage, "per-page", cfg.Crawl.PerPage, "listings expected per page")
	f.StringVarP(&cfg.Output.Path, "output", "o", cfg.Output.Path, "CSV output file, appended to")
	f.IntVar(&cfg.Crawl.MaxPages, "max-pages", cfg.Crawl.MaxPages, "hard page ceiling, 0 for none")
	f.IntVar(&cfg.Crawl.MaxConsecutiveFailures, "max-failures", cfg.Crawl.MaxConsecutiveFailures, "abort after this many failed pages in a row")
	f.IntVar(&cfg.Crawl.PageRetries, "retries", cfg.Crawl.PageRetries, "backoff retries per page before it counts as failed")
	f.DurationVar(&cfg.Crawl.DelayMin, "delay-min", cfg.Crawl.DelayMin, "lower bound of the random pause per page")
	f.DurationVar(&cfg.Crawl.DelayMax, "delay-max", cfg.Crawl.DelayMax, "upper bound of the random pause per page")
	f.DurationVar(&cfg.Crawl.MinPageInterval, "min-interval", cfg.Crawl.MinPageInterval, "minimum time between page requests")
	f.BoolVar(&cfg.Crawl.Resume, "resume", cfg.Crawl.Resume, "skip listings already in the output file or seen store")
	f.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run Chromium without a window")
	f.StringVar(&cfg.Browser.BrowserBin, "browser-bin", cfg.Browser.BrowserBin, "Chromium binary path")
	f.StringVar(&cfg.Browser.Proxy, "proxy", cfg.Browser.Proxy, "upstream proxy URL")
	f.StringVar(&cfg.Control.Addr, "control-addr", cfg.Control.Addr, "listen address of the control server, empty to disable")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	f.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "text or json")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) int {
	started := time.Now()
	runID := "run-" + started.Format("20060102T150405")
	slog.Info("autoscout starting",
		"run_id", runID,
		"url", cfg.Crawl.StartURL,
		"target", cfg.Crawl.TargetCount,
		"output", cfg.Output.Path,
		"headless", cfg.Browser.Headless,
		"resume", cfg.Crawl.Resume,
	)

	ext, err := extractor.New(cfg.Crawl.BaseURL)
	if err != nil {
		slog.Error("invalid base url", "error", err)
		return 1
	}
	sink, seen, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open output", "error", err)
		return 1
	}
	defer sink.Close()

	sig := browser.NewSignal()
	go browser.ResolveOnInput(os.Stdin, sig)

	ctrl := browser.New(cfg.Browser, sig)
	nav := navigator.New(ctrl, cfg.Crawl.MaxPages)
	orch := crawler.New(cfg.Crawl, ctrl, nav, ext, sink, seen)

	var final atomic.Pointer[models.Report]
	serveCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServer()
	if cfg.Control.Addr != "" {
		router := api.NewRouter(orch, sig, final.Load, cfg.Control, started)
		go func() {
			if err := api.Serve(serveCtx, cfg.Control.Addr, router); err != nil {
				slog.Error("control server error", "error", err)
			}
		}()
	}

	report := orch.Run(ctx)
	final.Store(report)

	if cfg.Webhook.URL != "" {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), webhookTimeout)
		n := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
		if err := n.Notify(wctx, webhook.NewEvent(runID, report)); err != nil {
			slog.Warn("webhook not delivered", "error", err)
		}
		cancel()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	return report.Outcome.ExitCode()
}

// openStores builds the CSV sink plus whichever optional backends are
// configured. Optional backends that cannot be reached are skipped.
func openStores(ctx context.Context, cfg *config.Config) (storage.Sink, storage.SeenStore, error) {
	var secondaries []storage.Sink
	var seen storage.MultiSeen

	if cfg.Crawl.Resume {
		mem, err := storage.SeenFromCSV(cfg.Output.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read previous output: %w", err)
		}
		slog.Info("resume: skipping listings already collected", "count", mem.Len(), "file", cfg.Output.Path)
		seen = append(seen, mem)
	}

	if dsn := cfg.Store.PostgresDSN; dsn != "" {
		pg, err := storage.NewPostgresSink(ctx, dsn)
		if err != nil {
			slog.Warn("postgres sink disabled", "error", err)
		} else {
			secondaries = append(secondaries, pg)
		}
	}

	if url := cfg.Store.RedisURL; url != "" {
		rs, err := storage.NewRedisStore(ctx, url, cfg.Store.RedisStream, cfg.Store.RedisSeenKey)
		if err != nil {
			slog.Warn("redis store disabled", "error", err)
		} else {
			secondaries = append(secondaries, rs)
			seen = append(seen, rs)
		}
	}

	sink := storage.NewMultiSink(storage.NewCSVSink(cfg.Output.Path), secondaries...)
	if len(seen) == 0 {
		return sink, nil, nil
	}
	return sink, seen, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	slog.SetDefault(slog.New(handler))
}
