package main

import (
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/swen128/slack-gpt/bot"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/openai"
	"github.com/swen128/slack-gpt/server"
	"github.com/swen128/slack-gpt/server/metrics"
	"github.com/swen128/slack-gpt/slack"
	"go.uber.org/zap"
)

// The serverless entrypoint. Configuration comes entirely from the
// function's environment; there is no config file, no HTTP listener and
// no metrics endpoint — the pipeline and its adapters are otherwise
// identical to the server deployment.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	errors.SetLogger(logger)

	httpClient := &http.Client{}
	slackClient := slack.NewClient(cfg.Slack, httpClient, logger)
	openaiClient := openai.NewClient(cfg.OpenAI, httpClient)
	m := metrics.NewMetrics()

	pipeline, err := bot.NewPipeline(slackClient, openaiClient, slackClient, cfg, m, logger)
	if err != nil {
		logger.Fatal("Failed to create pipeline", zap.Error(err))
	}

	eventsHandler := server.NewEventsHandler(cfg.Slack.SigningSecret, pipeline, logger)
	handler := server.NewLambdaHandler(eventsHandler, logger)

	lambda.Start(handler.Handle)
}
