// Command rosbridgectl inspects and drives a rosbridge v2 server from the
// command line, and can run an in-process fake server for local testing.
package main

import (
	"context"
	"os"
)

func main() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
