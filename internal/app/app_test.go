package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"jaegerds/internal/config"
	"jaegerds/internal/timerange"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Host: "127.0.0.1", Port: 8080, LogLevel: "debug"},
		Jaeger:     config.JaegerConfig{URL: "http://jaeger:16686", Timeout: "5s"},
		Datasource: config.DatasourceConfig{UID: "uid", Name: "Jaeger", NodeGraph: true},
		TimeRange:  config.TimeRangeConfig{From: "now-1h", To: "now"},
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	a, err := New(testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.History)
	assert.Equal(t, "http://jaeger:16686", a.Client.BaseURL())
	assert.True(t, a.Datasource.Settings().NodeGraph)
	assert.Equal(t, "uid", a.Datasource.Settings().UID)
}

func TestNewWithHistory(t *testing.T) {
	cfg := testConfig()
	cfg.History = config.HistoryConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "h.db")}

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.History)
	entries, err := a.History.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeSource(t *testing.T) {
	cfg := config.TimeRangeConfig{From: "now-2h", To: "now"}

	assert.Equal(t, timerange.DefaultSource{From: "now-2h", To: "now"}, TimeSource(cfg))

	cfg.UseRequestRange = true
	assert.IsType(t, timerange.ContextSource{}, TimeSource(cfg))
}
