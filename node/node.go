package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/p2p"
)

// ErrStaleTip is returned when a freshly mined block no longer extends the
// chain because the tip advanced during the search. The block is discarded;
// the caller should tell the user rather than drop it silently.
var ErrStaleTip = errors.New("mined block is stale: tip advanced during mining")

// startupSyncDelay gives the gossip mesh a moment to form before the
// initial chain request goes out.
const startupSyncDelay = 1 * time.Second

// Gossip is the transport surface the node consumes. *p2p.Service satisfies
// it; tests substitute a recorder.
type Gossip interface {
	ID() peer.ID
	Peers() []peer.ID
	Publish(ctx context.Context, msg *p2p.Message) error
}

// Config holds node configuration.
type Config struct {
	// NodeID is the human-facing identifier, distinct from the libp2p peer ID.
	NodeID string

	// Difficulty is the leading-zero-bit requirement for every mined block.
	Difficulty uint64
}

// Node drives inter-peer convergence: it answers chain requests, resolves
// chain responses through the longest-valid-chain rule, appends or
// re-syncs on block broadcasts, and mines new blocks on demand. All message
// handling runs on the single Run goroutine, so chain mutations triggered
// by the network never interleave.
type Node struct {
	cfg    Config
	store  store.ChainStore
	gossip Gossip
	log    zerolog.Logger

	miningMu sync.Mutex
	sessions map[uint64]context.CancelFunc
	nextSess uint64
}

// New wires a node around its chain store and gossip transport.
func New(cfg Config, st store.ChainStore, gossip Gossip, logger zerolog.Logger) *Node {
	if cfg.Difficulty == 0 {
		cfg.Difficulty = blockchain.DefaultDifficulty
	}
	return &Node{
		cfg:      cfg,
		store:    st,
		gossip:   gossip,
		log:      logger.With().Str("node", cfg.NodeID).Logger(),
		sessions: make(map[uint64]context.CancelFunc),
	}
}

// Start kicks off the startup sync: a chain request to all known peers.
// Every response that arrives is resolved independently in arrival order,
// so the node converges toward the longest valid chain among responders.
func (n *Node) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(startupSyncDelay):
		}
		if err := n.requestChain(ctx, ""); err != nil {
			n.log.Warn().Err(err).Msg("startup chain request failed")
		}
	}()
}

// Run consumes inbound envelopes until the channel closes or ctx is done.
func (n *Node) Run(ctx context.Context, msgs <-chan p2p.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-msgs:
			if !ok {
				return
			}
			n.HandleMessage(ctx, env.From, env.Message)
		}
	}
}

// HandleMessage dispatches one protocol message. Exported so tests can
// drive the protocol without a live transport.
func (n *Node) HandleMessage(ctx context.Context, from peer.ID, msg *p2p.Message) {
	switch msg.Type {
	case p2p.MessageTypeChainRequest:
		n.handleChainRequest(ctx, from, msg)
	case p2p.MessageTypeChainResponse:
		n.handleChainResponse(ctx, from, msg)
	case p2p.MessageTypeBlockBroadcast:
		n.handleBlockBroadcast(ctx, from, msg)
	default:
		n.log.Warn().Str("type", string(msg.Type)).Stringer("from", from).Msg("ignoring unknown message")
	}
}

func (n *Node) handleChainRequest(ctx context.Context, from peer.ID, msg *p2p.Message) {
	var req p2p.ChainRequestPayload
	if err := msg.ParsePayload(&req); err != nil {
		n.log.Warn().Err(err).Stringer("from", from).Msg("bad chain request payload")
		return
	}
	// Empty To means everyone answers.
	if req.To != "" && req.To != n.gossip.ID().String() {
		return
	}

	resp, err := p2p.NewMessage(p2p.MessageTypeChainResponse, p2p.ChainResponsePayload{
		To:    req.From,
		Chain: n.store.Snapshot(),
	})
	if err != nil {
		n.log.Error().Err(err).Msg("failed to build chain response")
		return
	}
	if err := n.gossip.Publish(ctx, resp); err != nil {
		n.log.Warn().Err(err).Stringer("to", from).Msg("failed to send chain response")
		return
	}
	n.log.Debug().Str("to", req.From).Uint64("height", n.store.Height()).Msg("sent chain response")
}

func (n *Node) handleChainResponse(ctx context.Context, from peer.ID, msg *p2p.Message) {
	var resp p2p.ChainResponsePayload
	if err := msg.ParsePayload(&resp); err != nil {
		n.log.Warn().Err(err).Stringer("from", from).Msg("bad chain response payload")
		return
	}
	if resp.To != n.gossip.ID().String() {
		return
	}

	local := n.store.Snapshot()
	outcome, err := blockchain.ChooseChain(local, resp.Chain, n.cfg.Difficulty)
	if err != nil {
		// A stale or buggy peer, not an emergency.
		n.log.Warn().Err(err).Stringer("from", from).Msg("rejecting remote chain")
		return
	}
	if outcome == blockchain.KeepLocal {
		n.log.Debug().Stringer("from", from).
			Int("local", local.Length()).Int("remote", resp.Chain.Length()).
			Msg("keeping local chain")
		return
	}

	if err := n.store.Replace(resp.Chain); err != nil {
		n.log.Warn().Err(err).Stringer("from", from).Msg("chain replacement refused")
		return
	}
	n.abandonMining()
	n.log.Info().Stringer("from", from).
		Int("height", resp.Chain.Length()).
		Msg("adopted longer remote chain")
}

func (n *Node) handleBlockBroadcast(ctx context.Context, from peer.ID, msg *p2p.Message) {
	var bc p2p.BlockBroadcastPayload
	if err := msg.ParsePayload(&bc); err != nil {
		n.log.Warn().Err(err).Stringer("from", from).Msg("bad block broadcast payload")
		return
	}
	if bc.Block == nil {
		n.log.Warn().Stringer("from", from).Msg("block broadcast without block")
		return
	}

	// Cheap path: the block extends our tip, no full-chain comparison needed.
	err := n.store.Append(bc.Block)
	if err == nil {
		n.abandonMining()
		n.log.Info().Uint64("index", bc.Block.Index).Stringer("from", from).
			Msg("appended broadcast block")
		return
	}
	n.log.Debug().Err(err).Stringer("from", from).Msg("broadcast block does not extend tip")

	// We are behind or diverged; ask the sender for its full chain.
	if err := n.requestChain(ctx, from.String()); err != nil {
		n.log.Warn().Err(err).Stringer("to", from).Msg("failed to request chain")
	}
}

// CreateBlock mines a block carrying data on top of the current tip and
// broadcasts it. Mining runs against an immutable snapshot of the tip, off
// any chain lock; if the tip advances before the result is appended the
// block is discarded and ErrStaleTip is returned.
func (n *Node) CreateBlock(ctx context.Context, data string) (*blockchain.Block, error) {
	tip := n.store.Head()
	candidate := blockchain.NewCandidate(tip, data)

	mctx, done := n.beginMining(ctx)
	defer done()

	n.log.Info().Uint64("index", candidate.Index).Msg("mining block")
	start := time.Now()
	mined, err := blockchain.Mine(mctx, candidate, n.cfg.Difficulty)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Cancelled because the chain grew underneath us.
		return nil, ErrStaleTip
	}
	n.log.Info().Uint64("index", mined.Index).Uint64("nonce", mined.Nonce).
		Stringer("hash", mined.Hash).Dur("took", time.Since(start)).
		Msg("mined block")

	if err := n.store.Append(mined); err != nil {
		if errors.Is(err, blockchain.ErrNotExtendingTip) {
			return nil, ErrStaleTip
		}
		return nil, fmt.Errorf("failed to append mined block: %w", err)
	}

	bcast, err := p2p.NewMessage(p2p.MessageTypeBlockBroadcast, p2p.BlockBroadcastPayload{Block: mined})
	if err != nil {
		return mined, fmt.Errorf("failed to build block broadcast: %w", err)
	}
	if err := n.gossip.Publish(ctx, bcast); err != nil {
		// The block is ours now either way; peers will catch up on the next sync.
		n.log.Warn().Err(err).Msg("failed to broadcast block")
	}
	return mined, nil
}

// PeerList returns the peers currently visible on the gossip topic.
func (n *Node) PeerList() []peer.ID {
	return n.gossip.Peers()
}

// ChainSnapshot returns a read-only copy of the current chain.
func (n *Node) ChainSnapshot() *blockchain.Chain {
	return n.store.Snapshot()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.store.Height()
}

func (n *Node) requestChain(ctx context.Context, to string) error {
	req, err := p2p.NewMessage(p2p.MessageTypeChainRequest, p2p.ChainRequestPayload{
		From: n.gossip.ID().String(),
		To:   to,
	})
	if err != nil {
		return err
	}
	return n.gossip.Publish(ctx, req)
}

// beginMining registers a cancellable mining session. The returned done
// func must be called when the search finishes for any reason.
func (n *Node) beginMining(ctx context.Context) (context.Context, func()) {
	mctx, cancel := context.WithCancel(ctx)

	n.miningMu.Lock()
	id := n.nextSess
	n.nextSess++
	n.sessions[id] = cancel
	n.miningMu.Unlock()

	return mctx, func() {
		n.miningMu.Lock()
		delete(n.sessions, id)
		n.miningMu.Unlock()
		cancel()
	}
}

// abandonMining cancels every in-flight mining session. Called whenever the
// chain grows through the network, since any search against the old tip can
// only produce a stale block.
func (n *Node) abandonMining() {
	n.miningMu.Lock()
	defer n.miningMu.Unlock()
	for id, cancel := range n.sessions {
		cancel()
		delete(n.sessions, id)
	}
}
