package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ledgerd/api"
	"ledgerd/blockchain/store"
	"ledgerd/config"
	"ledgerd/node"
	"ledgerd/p2p"
)

type runOptions struct {
	configPath  string
	nodeID      string
	listenAddrs []string
	peers       []string
	difficulty  uint64
	apiAddr     string
	pretty      bool
	debug       bool
}

func run(cmd *cobra.Command, opts *runOptions) error {
	logger := newLogger(opts)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, opts, cfg)

	if cfg.Node.ID == "" {
		cfg.Node.ID = uuid.NewString()
	}
	logger = logger.With().Str("node", cfg.Node.ID).Logger()
	logger.Info().Uint64("difficulty", cfg.Node.Difficulty).Msg("starting node")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := p2p.NewService(ctx, p2p.Config{
		ListenAddrs:     cfg.P2P.ListenAddrs,
		Topic:           cfg.P2P.Topic,
		MDNSServiceName: cfg.P2P.MDNSServiceName,
		BootstrapPeers:  cfg.P2P.BootstrapPeers,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	chainStore := store.NewMemoryChainStore(cfg.Node.Difficulty)
	n := node.New(node.Config{
		NodeID:     cfg.Node.ID,
		Difficulty: cfg.Node.Difficulty,
	}, chainStore, svc, logger)

	go n.Run(ctx, svc.Messages())
	n.Start(ctx)

	if cfg.API.Addr != "" {
		apiServer := api.NewServer(n, logger)
		apiServer.Start(cfg.API.Addr)
		defer apiServer.Shutdown(context.Background())
	}

	fmt.Printf("node %s up, peer id %s\n", cfg.Node.ID, svc.ID())
	repl(ctx, n, logger)

	logger.Info().Msg("shutting down")
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, opts *runOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("id") {
		cfg.Node.ID = opts.nodeID
	}
	if flags.Changed("listen") {
		cfg.P2P.ListenAddrs = opts.listenAddrs
	}
	if flags.Changed("peer") {
		cfg.P2P.BootstrapPeers = opts.peers
	}
	if flags.Changed("difficulty") && opts.difficulty > 0 {
		cfg.Node.Difficulty = opts.difficulty
	}
	if flags.Changed("api") {
		cfg.API.Addr = opts.apiAddr
	}
}

func newLogger(opts *runOptions) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.debug {
		level = zerolog.DebugLevel
	}
	if opts.pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
