//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/config"
	"charstudio/orchestrator/internal/infrastructure/logger"
	"charstudio/orchestrator/internal/infrastructure/studio"
	"charstudio/orchestrator/internal/interfaces/httpserver"
	"charstudio/orchestrator/internal/orchestrator"
)

var orchestratorSet = wire.NewSet(
	newStudioClient,
	wire.Bind(new(orchestrator.StudioClient), new(*studio.Client)),
	orchestrator.NewManager,
)

// BuildApplication demonstrates how to assemble the orchestrator with Wire.
func BuildApplication() (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		orchestratorSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newStudioClient(cfg *config.Config, log zerolog.Logger) *studio.Client {
	return studio.NewClient(cfg, log)
}
