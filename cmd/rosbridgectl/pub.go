package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rosbridge "github.com/chrisboulton/rosbridge-go"
)

var (
	// Number of messages to publish
	pubCount int

	// Delay between messages
	pubRate time.Duration
)

func init() {
	flags := PubCmd.Flags()

	flags.IntVarP(&pubCount, "count", "n", 1, "Number of messages to publish")
	flags.DurationVarP(&pubRate, "rate", "r", time.Second, "Delay between messages")
}

var PubCmd = &cobra.Command{
	Use:   "pub <topic> <type> [json message]",
	Short: "Publish a message on a topic",
	Long: `Publish a message on a topic

Usage
	rosbridgectl pub /chatter std_msgs/String '{"data": "hello"}'

`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := rosbridge.Message{}
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &msg); err != nil {
				return fmt.Errorf("invalid message: %w", err)
			}
		}

		ctx := cmd.Context()

		conn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(context.Background())

		topic := conn.Topic(args[0], args[1])
		defer topic.Unadvertise()

		for i := 0; i < pubCount; i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(pubRate):
				}
			}

			if err := topic.Publish(msg); err != nil {
				return err
			}
			log.Debug("Published", zap.String("topic", topic.Name()), zap.Int("seq", i))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s) on %s\n", pubCount, topic.Name())
		return nil
	},
}
