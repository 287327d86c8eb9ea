package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/config"
	"github.com/fiscaldocs/dce-cancel/internal/logger"
	lambdatransport "github.com/fiscaldocs/dce-cancel/internal/transport/lambda"
	"github.com/fiscaldocs/dce-cancel/internal/wiring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("binary", "lambda").Logger()

	svc, err := wiring.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build cancellation pipeline")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("failed to release backends")
		}
	}()

	lambda.Start(lambdatransport.New(svc.Handler).Handle)
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("dce-cancel lambda init failed")
}
