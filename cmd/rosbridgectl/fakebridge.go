package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisboulton/rosbridge-go/internal/fakebridge"
)

var (
	// Overrides the configured listen address
	listen string

	// Puts gin in debug mode
	debugHTTP bool
)

func init() {
	flags := FakebridgeCmd.Flags()

	flags.StringVarP(&listen, "listen", "l", "", "The address to listen on (default from config)")
	flags.BoolVar(&debugHTTP, "debug-http", false, "Enable gin debug mode")
}

var FakebridgeCmd = &cobra.Command{
	Use:   "fakebridge",
	Short: "Run an in-memory rosbridge v2 server",
	Long: `Run an in-memory rosbridge v2 server

It routes topics between connected clients and answers the rosapi topic,
service and param name listings. Nothing is forwarded to a real ROS graph.

Usage
	rosbridgectl fakebridge --listen 127.0.0.1:9090

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer signalStop()

		addr := conf.Listen
		if listen != "" {
			addr = listen
		}

		bridge := fakebridge.New(fakebridge.Options{
			Log:       log.Named("fakebridge"),
			DebugHTTP: debugHTTP,
		})

		log.Info("Starting fake bridge", zap.String("addr", addr))

		if err := bridge.ListenAndServe(ctx, addr); err != nil {
			log.Error("Fake bridge stopped", zap.Error(err))
			return err
		}

		log.Info("Exiting")
		return nil
	},
}
