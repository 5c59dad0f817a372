package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerd",
		Short: "Minimal peer-to-peer proof-of-work ledger node",
		Long: `ledgerd runs a single ledger node: an in-memory chain of proof-of-work
blocks, gossiped over libp2p. Nodes on the same LAN find each other via
mDNS; remote peers can be added with --peer.

Interactive commands on stdin:
  ls p             list known peers
  ls c             print the local chain
  create b <data>  mine and broadcast a block carrying <data>`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.nodeID, "id", "", "node identifier (default: random uuid)")
	flags.StringArrayVar(&opts.listenAddrs, "listen", nil, "listen multiaddr (repeatable)")
	flags.StringArrayVar(&opts.peers, "peer", nil, "bootstrap peer multiaddr (repeatable)")
	flags.Uint64Var(&opts.difficulty, "difficulty", 0, "proof-of-work difficulty in leading zero bits")
	flags.StringVar(&opts.apiAddr, "api", "", "HTTP API listen address, e.g. :8080 (disabled when empty)")
	flags.BoolVar(&opts.pretty, "pretty", true, "human-readable console logs")
	flags.BoolVar(&opts.debug, "debug", false, "debug-level logging")

	return cmd
}
