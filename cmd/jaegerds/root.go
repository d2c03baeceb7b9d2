package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"jaegerds/internal/app"
	"jaegerds/internal/config"
)

var (
	configPath string
	jaegerURL  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "jaegerds",
	Short:        "Jaeger trace query adapter",
	Long:         "jaegerds turns Jaeger trace lookups, searches and uploaded trace documents into data frames.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml, ./config/config.yaml, /etc/jaegerds/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&jaegerURL, "jaeger-url", "", "Jaeger query URL (env: JAEGERDS_JAEGER_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: JAEGERDS_APP_LOG_LEVEL)")
}

// loadApp builds the application from config and flags. Flags win over
// the file and the environment.
func loadApp() (*app.App, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if jaegerURL != "" {
		cfg.Jaeger.URL = jaegerURL
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return app.New(cfg, nil)
}

// withApp runs fn with a freshly built application and closes it after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := loadApp()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}
