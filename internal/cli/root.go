package cli

import (
	"context"
	"os"

	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/spf13/cobra"
)

var configPath string

// newService builds the run service for a command. Tests swap it for a mock.
var newService = func(ctx context.Context, cfg config.Settings) (rag.Service, func(), error) {
	components, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	return components.Service, components.Pool.Stop, nil
}

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Answer questions about a document",
	Long:          `docqa fetches one document, indexes it in memory and answers questions using only its content.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docqa.yaml", "optional yaml config file")
}

func Execute() error {
	return rootCmd.Execute()
}

func loadSettings() (config.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	// keep stdout for answers
	logger_i.Init(logger_i.Options{Level: cfg.Log.Level, IsProd: cfg.Log.IsProd, Output: os.Stderr})
	return cfg, nil
}
