package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	rosbridge "github.com/chrisboulton/rosbridge-go"
)

// Service type sent with the call, informational only
var callType string

func init() {
	CallCmd.Flags().StringVarP(&callType, "type", "t", "", "The service type")
}

var CallCmd = &cobra.Command{
	Use:   "call <service> [json request]",
	Short: "Call a service and print its response",
	Long: `Call a service and print its response

The request is a JSON object. Its fields are sent as positional arguments in
the order they appear.

Usage
	rosbridgectl call /add_two_ints '{"a": 1, "b": 2}'

`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := rosbridge.NewServiceRequest()
		if len(args) == 2 {
			var err error
			if req, err = rosbridge.ServiceRequestFromJSON([]byte(args[1])); err != nil {
				return err
			}
		}

		ctx := cmd.Context()

		conn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(context.Background())

		resp, err := conn.Service(args[0], callType).Call(ctx, req)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(resp.Raw()))
		return nil
	},
}
