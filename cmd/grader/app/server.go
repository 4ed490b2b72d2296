// Package app provides the rubric grader application.
package app

import (
	"context"
	"fmt"

	"github.com/kart-io/rubric-grader/cmd/grader/app/options"
	"github.com/kart-io/rubric-grader/pkg/infra/app"
)

const (
	// Name is the name of the application. It also sets the GRADER_ env prefix
	// and the default config file name.
	Name = "grader"

	// commandDesc is the description of the command.
	commandDesc = `Rubric Grader Service

Grades student responses against instructor rubrics with retrieval-augmented generation.

This server provides:
  - Rubric PDF and text ingestion into a per-user vector namespace
  - Semantic retrieval of rubric chunks
  - LLM grading of a student response against the retrieved rubric
  - HTTP and gRPC transports, Prometheus metrics and OpenTelemetry tracing`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Rubric grading service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}
