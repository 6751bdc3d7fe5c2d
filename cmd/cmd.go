package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/Xhand98/skillswap-realtime/config"
	"github.com/Xhand98/skillswap-realtime/internal/client"
	"github.com/Xhand98/skillswap-realtime/internal/client/settings"
	"github.com/Xhand98/skillswap-realtime/internal/diag"
	"github.com/Xhand98/skillswap-realtime/internal/health"
)

const ServiceName = "skillswap-realtime"

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Realtime messaging gateway for the SkillSwap platform",
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the room broadcast server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Connect as a client and show the live health dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
			&cli.Int64Flag{
				Name:     "user",
				Usage:    "User id to connect as",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			store := settings.NewFileStore(cfg.Client.SettingsFile)
			if settings.DebugEnabled(store) {
				cfg.Log.Level = "debug"
			}
			logger := ProvideLogger(cfg)
			monitor := health.NewMonitor(logger, store,
				health.WithAutoDisable(cfg.Health.AutoDisableOnLoop),
				health.WithCheckInterval(cfg.Health.CheckInterval),
				health.WithRecoverAfter(cfg.Health.RecoverAfter),
			)
			monitor.Start()
			defer monitor.Stop()

			mgr := client.New(client.Config{
				URL:                  cfg.Client.URL,
				AutoReconnect:        cfg.Client.AutoReconnect,
				ReconnectDelay:       cfg.Client.ReconnectDelay,
				MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
				KeepAliveInterval:    cfg.Client.KeepAliveInterval,
				ConnectionTimeout:    cfg.Client.ConnectionTimeout,
			}, logger, store, monitor)
			defer mgr.Disconnect()

			mgr.Connect(c.Int64("user"))

			return diag.NewDashboard(mgr, monitor).Run()
		},
	}
}
