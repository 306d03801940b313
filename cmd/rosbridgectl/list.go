package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	rosbridge "github.com/chrisboulton/rosbridge-go"
)

var TopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the server's active topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, (*rosbridge.Conn).Topics)
	},
}

var ServicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the server's active services",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, (*rosbridge.Conn).Services)
	},
}

var ParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "List the parameter names known to the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, (*rosbridge.Conn).ParamNames)
	},
}

func runList(cmd *cobra.Command, list func(*rosbridge.Conn, context.Context) ([]string, error)) error {
	ctx := cmd.Context()

	conn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	names, err := list(conn, ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
