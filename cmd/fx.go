package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/Xhand98/skillswap-realtime/config"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
	amqphandler "github.com/Xhand98/skillswap-realtime/internal/handler/amqp"
	"github.com/Xhand98/skillswap-realtime/internal/handler/httpapi"
	wshandler "github.com/Xhand98/skillswap-realtime/internal/handler/ws"
	"github.com/Xhand98/skillswap-realtime/internal/service"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

func NewApp(cfg *config.Config) *fx.App {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		registry.Module,
		service.Module,
		wshandler.Module,
		httpapi.Module,
	}

	if cfg.AMQP.Enabled {
		opts = append(opts, amqphandler.Module)
	}

	return fx.New(opts...)
}

// ProvideLogger builds the process logger: text to stderr by default, or
// size-rotated file output when configured.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
