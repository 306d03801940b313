package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rosbridge "github.com/chrisboulton/rosbridge-go"
	"github.com/chrisboulton/rosbridge-go/internal/env"
)

var (
	// Path to an optional TOML config file
	configPath string

	// Overrides the configured server url
	url string

	// Overrides the configured log level
	logLevel string

	conf *env.Config
	log  *zap.Logger
)

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	flags.StringVarP(&url, "url", "u", "", "The rosbridge server url (default from config)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(TopicsCmd, ServicesCmd, ParamsCmd, PubCmd, EchoCmd, CallCmd, FakebridgeCmd)
}

var RootCmd = &cobra.Command{
	Use:           "rosbridgectl",
	Short:         "Talk to a rosbridge v2 server",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context(), configPath)
		if err != nil {
			return err
		}

		if url != "" {
			conf.URL = url
		}
		if logLevel != "" {
			conf.LogLevel = logLevel
		}

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// dial connects to the configured server. The returned connection logs
// through slog at the configured level.
func dial(ctx context.Context) (*rosbridge.Conn, error) {
	slogger, err := env.MakeSlogLogger(os.Stderr, conf.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, conf.ConnectTimeout)
	defer cancel()

	log.Debug("Connecting", zap.String("url", conf.URL))

	conn, err := rosbridge.Connect(ctx, conf.URL, rosbridge.WithLogger(slogger))
	if err != nil {
		return nil, err
	}

	conn.On(rosbridge.EventError, func(payload any) {
		log.Warn("Connection error", zap.String("conn", conn.ID()), zap.Any("error", payload))
	})

	return conn, nil
}
