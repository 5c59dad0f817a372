package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"ledgerd/node"
)

// repl reads commands from stdin until EOF or ctx cancellation. Command
// output goes to stdout; everything else is logged.
func repl(ctx context.Context, n *node.Node, logger zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleCommand(ctx, n, logger, strings.TrimSpace(line))
		}
	}
}

func handleCommand(ctx context.Context, n *node.Node, logger zerolog.Logger, line string) {
	switch {
	case line == "":

	case line == "ls p":
		peers := n.PeerList()
		fmt.Printf("%d peers:\n", len(peers))
		for _, p := range peers {
			fmt.Println("  " + p.String())
		}

	case line == "ls c":
		out, err := json.MarshalIndent(n.ChainSnapshot(), "", "  ")
		if err != nil {
			logger.Error().Err(err).Msg("failed to render chain")
			return
		}
		fmt.Println(string(out))

	case strings.HasPrefix(line, "create b"):
		data := strings.TrimSpace(strings.TrimPrefix(line, "create b"))
		if data == "" {
			fmt.Println("usage: create b <data>")
			return
		}
		block, err := n.CreateBlock(ctx, data)
		if err != nil {
			if errors.Is(err, node.ErrStaleTip) {
				fmt.Println("block not accepted: the chain advanced while mining, try again")
				return
			}
			logger.Error().Err(err).Msg("create block failed")
			return
		}
		fmt.Printf("mined block %d (%s)\n", block.Index, block.Hash)

	default:
		logger.Error().Str("input", line).Msg("unknown command")
	}
}
