package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/swen128/slack-gpt/bot"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/openai"
	"github.com/swen128/slack-gpt/server"
	"github.com/swen128/slack-gpt/server/metrics"
	"github.com/swen128/slack-gpt/slack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "slackgpt.yaml", "Path to configuration file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("slackgpt %s\n", Version)
		os.Exit(0)
	}

	// Populate the environment from .env when present, before the config
	// file's ${...} references are expanded.
	_ = godotenv.Load()

	// Load configuration with hot reload
	watcher, err := config.NewConfigWatcher(*configFile, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	defer watcher.Close()
	cfg := watcher.GetCurrentConfig()

	// Just validate and exit if requested
	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	errors.SetLogger(logger)

	// One HTTP client, shared by both outbound collaborators; it is safe
	// for concurrent use and pools connections across invocations.
	httpClient := &http.Client{}
	slackClient := slack.NewClient(cfg.Slack, httpClient, logger)
	openaiClient := openai.NewClient(cfg.OpenAI, httpClient)
	m := metrics.NewMetrics()

	pipeline, err := bot.NewPipeline(slackClient, openaiClient, slackClient, cfg, m, logger)
	if err != nil {
		logger.Fatal("Failed to create pipeline", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Discover the bot's own user ID so self-mentions can be ignored.
	if cfg.Slack.BotUserID == "" {
		if id, err := slackClient.BotUserID(ctx); err != nil {
			logger.Warn("Could not resolve bot user ID; self-mentions will not be filtered", zap.Error(err))
		} else {
			pipeline.SetBotUserID(id)
		}
	}

	eventsHandler := server.NewEventsHandler(cfg.Slack.SigningSecret, pipeline, logger)
	router := server.NewRouter(eventsHandler, cfg, m, logger)
	srv := server.NewServer(cfg.Server, router, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	// Config changes are logged; credentials and server settings apply on
	// the next restart.
	g.Go(func() error {
		updates := watcher.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-updates:
				logger.Info("Configuration file changed; restart to apply")
			}
		}
	})

	logger.Info("Starting slackgpt",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.OpenAI.Model),
	)
	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zapCfg.Encoding = "console"
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
