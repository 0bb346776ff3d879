// Command chatmeshctl is a thin client that dispatches chatproto requests to
// every node in a cluster.yaml and prints the last response, exercising
// client.Dispatcher the way any external caller would.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/chatmesh/chatmesh/client"
	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/clusterauth"
	"github.com/chatmesh/chatmesh/internal/config"
	"github.com/chatmesh/chatmesh/internal/idgen"
	"github.com/chatmesh/chatmesh/internal/transport"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "chatmeshctl",
		Short:         "Talk to a chatmesh cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "cluster.yaml", "cluster membership config file")
	root.AddCommand(
		newCreateUserCmd(),
		newLoginCmd(),
		newSendCmd(),
		newGetMessagesCmd(),
		newListUsersCmd(),
		newReadMessagesCmd(),
		newDeleteMessagesCmd(),
		newDeleteUserCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func newRequestID() string { return idgen.New() }

func dispatcher() (*client.Dispatcher, error) {
	file, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// A node's own cluster.yaml lists every other member under peers and its
	// own reachable address under listen_address; chatmeshctl reads whatever
	// node's config is handed to it and just needs the full address map.
	nodes := make(map[int]string, len(file.Peers)+1)
	for _, p := range file.Peers {
		nodes[p.ID] = p.Address
	}
	if file.ListenAddress != "" {
		nodes[file.SelfID] = file.ListenAddress
	}

	var signer *clusterauth.Signer
	if file.ClusterSecret != "" {
		signer = clusterauth.NewSigner([]byte(file.ClusterSecret), 10*time.Second)
	}
	return client.New(nodes, transport.NewClient(0, signer), nil), nil
}

func send(req chatproto.Request) error {
	d, err := dispatcher()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := d.Send(ctx, req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp chatproto.Response) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
