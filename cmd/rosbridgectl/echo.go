package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rosbridge "github.com/chrisboulton/rosbridge-go"
)

var (
	// Stop after this many messages, 0 means forever
	echoCount int

	// Stream buffer size
	echoBuffer int
)

func init() {
	flags := EchoCmd.Flags()

	flags.IntVarP(&echoCount, "count", "n", 0, "Exit after this many messages (0 for no limit)")
	flags.IntVar(&echoBuffer, "buffer", 100, "Messages buffered before new ones are dropped")
}

var EchoCmd = &cobra.Command{
	Use:   "echo <topic> <type>",
	Short: "Print messages published on a topic as JSON lines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(context.Background())

		topic := conn.Topic(args[0], args[1])
		stream, err := topic.Stream(rosbridge.WithStreamBuffer(echoBuffer))
		if err != nil {
			return err
		}
		defer topic.Unsubscribe()

		enc := json.NewEncoder(cmd.OutOrStdout())

		seen := 0
		for msg, err := range stream.Messages(ctx) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					break
				}
				return err
			}

			if err := enc.Encode(msg); err != nil {
				return err
			}

			seen++
			if echoCount > 0 && seen >= echoCount {
				break
			}
		}

		if dropped := stream.Dropped(); dropped > 0 {
			log.Warn("Dropped messages", zap.String("topic", topic.Name()), zap.Int("dropped", dropped))
		}
		return nil
	},
}
