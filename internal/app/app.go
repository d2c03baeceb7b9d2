// Package app wires configuration, logging, metrics and the Jaeger client
// into a ready data source.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jaegerds/internal/clients/jaeger"
	"jaegerds/internal/config"
	"jaegerds/internal/datasource"
	"jaegerds/internal/db"
	"jaegerds/internal/metrics"
	"jaegerds/internal/templating"
	"jaegerds/internal/timerange"
)

// App holds the components shared by the HTTP server, the MCP server and
// the command line.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Client     *jaeger.Client
	Datasource *datasource.Datasource
	// History is nil unless enabled in the configuration.
	History *db.DB
}

// NewLogger builds a JSON production logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	return logConfig.Build()
}

// New builds every component from cfg. A nil logger creates one from the
// configured level.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		l, err := NewLogger(cfg.App.LogLevel)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := jaeger.NewClient(cfg.Jaeger.URL, cfg.Jaeger.GetTimeoutDuration(), logger.Named("jaeger"),
		jaeger.WithObserver(m.ObserveJaegerRequest))

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Client:   client,
	}

	a.Datasource = datasource.New(
		datasource.Settings{
			UID:               cfg.Datasource.UID,
			Name:              cfg.Datasource.Name,
			TraceIDTimeParams: cfg.Datasource.TraceIDTimeParams,
			NodeGraph:         cfg.Datasource.NodeGraph,
		},
		client,
		TimeSource(cfg.TimeRange),
		templating.NewInterpolator(nil),
		datasource.WithLogger(logger.Named("datasource")),
		datasource.WithMetrics(m),
	)

	if cfg.History.Enabled {
		store, err := db.New(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		a.History = store
	}

	return a, nil
}

// TimeSource picks the time range strategy for cfg.
func TimeSource(cfg config.TimeRangeConfig) timerange.Source {
	fallback := timerange.DefaultSource{From: cfg.From, To: cfg.To}
	if cfg.UseRequestRange {
		return timerange.ContextSource{Fallback: fallback}
	}
	return fallback
}

// Close releases the history database and flushes the logger.
func (a *App) Close() error {
	var err error
	if a.History != nil {
		err = a.History.Close()
	}
	_ = a.Logger.Sync()
	return err
}
