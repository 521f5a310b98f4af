// Command luminis runs the ingestion/summarization/publishing pipeline:
// load config, wire the Crawler and Worker subsystems against a shared
// cache, and run until shutdown. Grounded on the teacher's
// cmd/articlescanner/main.go (config load -> logger -> application -> run
// -> exit code), generalized with --log-file and the non-zero exit
// mapping spec §6 requires.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luminis/luminis/internal/cache"
	"github.com/luminis/luminis/internal/config"
	"github.com/luminis/luminis/internal/crawler/feed"
	"github.com/luminis/luminis/internal/crawler/npalist"
	"github.com/luminis/luminis/internal/domain"
	"github.com/luminis/luminis/internal/fetcher"
	"github.com/luminis/luminis/internal/logging"
	"github.com/luminis/luminis/internal/publisher"
	"github.com/luminis/luminis/internal/subsystem"
	"github.com/luminis/luminis/internal/summarizer"
)

const mastodonSecretsPath = "./secrets/mastodon.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.yaml", "path to YAML configuration")
	logFile := flag.String("log-file", "", "optional path to redirect logs to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "luminis: config error:", err)
		return 1
	}

	logWriter, err := openLogWriter(*logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "luminis: log file error:", err)
		return 1
	}
	log := logging.New("info", logWriter)

	app, err := build(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.run(ctx)

	if cause := app.shutdown.Cause(); cause != nil {
		log.Error("exiting after fatal shutdown", "error", cause)
		return 1
	}
	log.Info("exiting cleanly")
	return 0
}

func openLogWriter(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	w, err := logging.Open(path)
	if err != nil {
		return nil, err
	}
	f, ok := w.(*os.File)
	if !ok {
		return nil, fmt.Errorf("unexpected log writer type")
	}
	return f, nil
}

// noopSource stands in for FallbackSource when crawler.rss.enabled is
// false: it always fails, so CrawlerSubsystem.tick's exhaustion path
// triggers shutdown rather than silently doing nothing after retries run
// out.
type noopSource struct{}

func (noopSource) Fetch(ctx context.Context) ([]domain.CrawlItem, error) {
	return nil, fmt.Errorf("no fallback source configured")
}

// application holds every wired component needed to run both subsystems.
type application struct {
	crawler  *subsystem.CrawlerSubsystem
	worker   *subsystem.WorkerSubsystem
	shutdown *subsystem.Shutdown
}

func (a *application) run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() {
		a.worker.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		a.crawler.Run(ctx)
		done <- struct{}{}
	}()

	<-done
	<-done
}

func build(cfg config.Config, log *slog.Logger) (*application, error) {
	c, err := cache.New(cfg.Run.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	manifestStore := cache.NewManifestStore(c)

	fetch := fetcher.New(cfg.Crawler.NPAList.DocumentURLTemplate, time.Duration(cfg.Crawler.RequestTimeoutSec)*time.Second)

	summ := summarizer.New(summarizer.Config{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		RequestTimeout: time.Duration(cfg.LLM.RequestTimeoutSec) * time.Second,
		SamplePercent:  cfg.Run.InputSamplePercent,
	})

	channels, publishers, err := buildChannels(cfg)
	if err != nil {
		return nil, err
	}

	shutdown := subsystem.NewShutdown()

	var primary subsystem.Source
	if cfg.Crawler.NPAList.Enabled {
		primary, err = npalist.New(
			cfg.Crawler.NPAList.URL,
			cfg.Crawler.NPAList.Limit,
			cfg.Crawler.NPAList.Regex,
			manifestStore,
			time.Duration(cfg.Crawler.RequestTimeoutSec)*time.Second,
		)
		if err != nil {
			return nil, fmt.Errorf("build npalist source: %w", err)
		}
	}

	var fallback subsystem.Source
	if cfg.Crawler.RSS.Enabled {
		fallback, err = feed.New(
			cfg.Crawler.RSS.URL,
			cfg.Crawler.RSS.Regex,
			time.Duration(cfg.Crawler.RequestTimeoutSec)*time.Second,
		)
		if err != nil {
			return nil, fmt.Errorf("build feed source: %w", err)
		}
	}

	if primary == nil {
		return nil, fmt.Errorf("crawler.npalist.enabled must be true: no primary source configured")
	}
	if fallback == nil {
		fallback = noopSource{}
	}

	pipelineChannel := make(chan subsystem.Items, 8)

	crawlerLog := log.With("component", "crawler")
	crawler := &subsystem.CrawlerSubsystem{
		Primary:          primary,
		Fallback:         fallback,
		Interval:         time.Duration(cfg.Crawler.IntervalSeconds) * time.Second,
		MaxRetryAttempts: cfg.Crawler.MaxRetryAttempts,
		RetryBackoff:     time.Second,
		Out:              pipelineChannel,
		Shutdown:         shutdown,
		Log:              crawlerLog,
	}

	pipeline := &subsystem.Pipeline{
		Cache:           c,
		Fetcher:         fetch,
		Summarizer:      summ,
		Publishers:      publishers,
		Channels:        channels,
		PostTemplate:    cfg.Run.PostTemplate,
		PostMaxChars:    cfg.Run.PostMaxChars,
		GlobalSoftLimit: cfg.Run.GlobalSoftLimit,
		PollDelay:       time.Duration(cfg.Crawler.PollDelaySecs) * time.Second,
		Log:             log.With("component", "pipeline"),
	}

	worker := &subsystem.WorkerSubsystem{
		In:             pipelineChannel,
		Pipeline:       pipeline,
		Shutdown:       shutdown,
		Log:            log.With("component", "worker"),
		MaxPostsPerRun: cfg.Run.MaxPostsPerRun,
	}

	return &application{crawler: crawler, worker: worker, shutdown: shutdown}, nil
}

func buildChannels(cfg config.Config) ([]domain.ChannelSpec, []publisher.Publisher, error) {
	var channels []domain.ChannelSpec
	var publishers []publisher.Publisher

	channels = append(channels, domain.ChannelSpec{
		Name:          "console",
		Enabled:       cfg.Output.ConsoleEnabled,
		SoftCharLimit: cfg.Output.ConsoleMaxChars,
	})
	publishers = append(publishers, publisher.NewConsole(os.Stdout, cfg.Output.ConsoleMaxChars))

	channels = append(channels, domain.ChannelSpec{
		Name:          "file",
		Enabled:       cfg.Output.FileEnabled,
		SoftCharLimit: cfg.Output.FileMaxChars,
	})
	publishers = append(publishers, publisher.NewFile(cfg.Output.FilePath, cfg.Output.FileAppend, cfg.Output.FileMaxChars))

	mastodonTimeout := 15 * time.Second
	mastodonToken := cfg.Mastodon.AccessToken
	if cfg.Mastodon.Enabled && mastodonToken == "" {
		token, err := publisher.ResolveMastodonToken(mastodonToken, mastodonSecretsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve mastodon token: %w", err)
		}
		mastodonToken = token
	}
	channels = append(channels, domain.ChannelSpec{
		Name:          "mastodon",
		Enabled:       cfg.Mastodon.Enabled,
		SoftCharLimit: cfg.Mastodon.MaxChars,
	})
	publishers = append(publishers, publisher.NewMastodon(
		cfg.Mastodon.BaseURL,
		mastodonToken,
		cfg.Mastodon.Visibility,
		cfg.Mastodon.Language,
		cfg.Mastodon.SpoilerText,
		cfg.Mastodon.Sensitive,
		cfg.Mastodon.MaxChars,
		mastodonTimeout,
	))

	channels = append(channels, domain.ChannelSpec{
		Name:          "telegram",
		Enabled:       cfg.Telegram.Enabled,
		SoftCharLimit: cfg.Telegram.MaxChars,
	})
	publishers = append(publishers, publisher.NewTelegram(
		cfg.Telegram.APIBaseURL,
		cfg.Telegram.BotToken,
		cfg.Telegram.TargetChatID,
		cfg.Telegram.MaxChars,
		15*time.Second,
	))

	return channels, publishers, nil
}
