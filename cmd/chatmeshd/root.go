// Command chatmeshd runs one chatmesh cluster node: it serves the client and
// peer Execute/Heartbeat/Election/Coordinator/GetCommits RPCs, runs the
// Election Engine and Heartbeat Monitor, and streams new messages to
// connected clients over the /live websocket endpoint.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "chatmeshd",
		Short:         "chatmesh cluster node daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "cluster.yaml", "cluster membership config file")
	root.AddCommand(newServeCmd(), newInitCmd())

	if err := fang.Execute(context.Background(), root, fang.WithVersion(Version), fang.WithCommit(Commit)); err != nil {
		os.Exit(1)
	}
}
