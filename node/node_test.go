package node

import (
	"context"
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/p2p"
)

const testDifficulty = 1

// fakeGossip records published messages instead of touching the network.
type fakeGossip struct {
	id    peer.ID
	peers []peer.ID

	mu        sync.Mutex
	published []*p2p.Message
}

func (f *fakeGossip) ID() peer.ID      { return f.id }
func (f *fakeGossip) Peers() []peer.ID { return f.peers }

func (f *fakeGossip) Publish(_ context.Context, msg *p2p.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeGossip) sent() []*p2p.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*p2p.Message, len(f.published))
	copy(out, f.published)
	return out
}

func newTestNode(t *testing.T) (*Node, *fakeGossip, *store.MemoryChainStore) {
	t.Helper()
	gossip := &fakeGossip{id: peer.ID("local-peer")}
	chainStore := store.NewMemoryChainStore(testDifficulty)
	n := New(Config{NodeID: "test-node", Difficulty: testDifficulty}, chainStore, gossip, zerolog.Nop())
	return n, gossip, chainStore
}

func mineNext(t *testing.T, prev *blockchain.Block, data string) *blockchain.Block {
	t.Helper()
	mined, err := blockchain.Mine(context.Background(), blockchain.NewCandidate(prev, data), testDifficulty)
	require.NoError(t, err)
	return mined
}

func mustMessage(t *testing.T, msgType p2p.MessageType, payload interface{}) *p2p.Message {
	t.Helper()
	msg, err := p2p.NewMessage(msgType, payload)
	require.NoError(t, err)
	return msg
}

func TestCreateBlock(t *testing.T) {
	n, gossip, chainStore := newTestNode(t)

	block, err := n.CreateBlock(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), block.Index)
	assert.Equal(t, blockchain.GenesisBlock.Hash, block.PreviousHash)
	assert.True(t, blockchain.IsSelfConsistent(block))
	assert.True(t, blockchain.HashMeetsDifficulty(block.Hash, testDifficulty))
	assert.Equal(t, uint64(2), chainStore.Height())

	sent := gossip.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, p2p.MessageTypeBlockBroadcast, sent[0].Type)

	var bc p2p.BlockBroadcastPayload
	require.NoError(t, sent[0].ParsePayload(&bc))
	assert.Equal(t, block.Hash, bc.Block.Hash)
}

// staleHeadStore reports a tip that is older than the chain it actually
// holds, reproducing a tip advance between mining start and append.
type staleHeadStore struct {
	*store.MemoryChainStore
}

func (s *staleHeadStore) Head() *blockchain.Block {
	return blockchain.GenesisBlock
}

func TestCreateBlockStaleTip(t *testing.T) {
	gossip := &fakeGossip{id: peer.ID("local-peer")}
	backing := store.NewMemoryChainStore(testDifficulty)
	require.NoError(t, backing.Append(mineNext(t, blockchain.GenesisBlock, "winner")))

	n := New(Config{NodeID: "test-node", Difficulty: testDifficulty},
		&staleHeadStore{backing}, gossip, zerolog.Nop())

	_, err := n.CreateBlock(context.Background(), "loser")
	require.ErrorIs(t, err, ErrStaleTip)

	assert.Equal(t, uint64(2), backing.Height(), "stale block must be discarded")
	assert.Empty(t, gossip.sent(), "stale block must not be broadcast")
}

func TestHandleChainRequest(t *testing.T) {
	n, gossip, _ := newTestNode(t)
	requester := peer.ID("remote-peer")

	t.Run("request to all gets a response", func(t *testing.T) {
		msg := mustMessage(t, p2p.MessageTypeChainRequest,
			p2p.ChainRequestPayload{From: requester.String()})
		n.HandleMessage(context.Background(), requester, msg)

		sent := gossip.sent()
		require.Len(t, sent, 1)
		require.Equal(t, p2p.MessageTypeChainResponse, sent[0].Type)

		var resp p2p.ChainResponsePayload
		require.NoError(t, sent[0].ParsePayload(&resp))
		assert.Equal(t, requester.String(), resp.To)
		assert.Equal(t, 1, resp.Chain.Length())
	})

	t.Run("request addressed elsewhere is ignored", func(t *testing.T) {
		before := len(gossip.sent())
		msg := mustMessage(t, p2p.MessageTypeChainRequest,
			p2p.ChainRequestPayload{From: requester.String(), To: "someone-else"})
		n.HandleMessage(context.Background(), requester, msg)
		assert.Len(t, gossip.sent(), before)
	})
}

func TestHandleChainResponse(t *testing.T) {
	sender := peer.ID("remote-peer")

	longer := &blockchain.Chain{Blocks: []*blockchain.Block{blockchain.GenesisBlock}}
	for i := 0; i < 2; i++ {
		longer.Blocks = append(longer.Blocks, mineNext(t, longer.Tip(), "remote"))
	}

	t.Run("longer valid chain adopted", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)
		msg := mustMessage(t, p2p.MessageTypeChainResponse,
			p2p.ChainResponsePayload{To: gossip.ID().String(), Chain: longer})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(3), chainStore.Height())
		assert.Equal(t, longer.Tip().Hash, chainStore.Head().Hash)
	})

	t.Run("response addressed elsewhere is ignored", func(t *testing.T) {
		n, _, chainStore := newTestNode(t)
		msg := mustMessage(t, p2p.MessageTypeChainResponse,
			p2p.ChainResponsePayload{To: "someone-else", Chain: longer})
		n.HandleMessage(context.Background(), sender, msg)
		assert.Equal(t, uint64(1), chainStore.Height())
	})

	t.Run("shorter chain kept out", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)
		require.NoError(t, chainStore.Replace(longer))

		short := &blockchain.Chain{Blocks: []*blockchain.Block{blockchain.GenesisBlock}}
		msg := mustMessage(t, p2p.MessageTypeChainResponse,
			p2p.ChainResponsePayload{To: gossip.ID().String(), Chain: short})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(3), chainStore.Height())
	})

	t.Run("invalid chain rejected silently", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)

		bad := &blockchain.Chain{Blocks: make([]*blockchain.Block, len(longer.Blocks))}
		copy(bad.Blocks, longer.Blocks)
		tampered := *bad.Blocks[1]
		tampered.Data = "rewritten"
		bad.Blocks[1] = &tampered

		msg := mustMessage(t, p2p.MessageTypeChainResponse,
			p2p.ChainResponsePayload{To: gossip.ID().String(), Chain: bad})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(1), chainStore.Height(), "invalid remote chain must keep local")
	})
}

func TestHandleBlockBroadcast(t *testing.T) {
	sender := peer.ID("remote-peer")

	t.Run("extending block appended directly", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)
		b1 := mineNext(t, blockchain.GenesisBlock, "hello")

		msg := mustMessage(t, p2p.MessageTypeBlockBroadcast, p2p.BlockBroadcastPayload{Block: b1})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(2), chainStore.Height())
		assert.Equal(t, b1.Hash, chainStore.Head().Hash)
		assert.Empty(t, gossip.sent(), "direct append must not trigger a chain request")
	})

	t.Run("non-extending block triggers chain request", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)

		// A block two ahead of our tip: valid somewhere, not here.
		b1 := mineNext(t, blockchain.GenesisBlock, "one")
		b2 := mineNext(t, b1, "two")

		msg := mustMessage(t, p2p.MessageTypeBlockBroadcast, p2p.BlockBroadcastPayload{Block: b2})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(1), chainStore.Height(), "non-extending block must not be appended")

		sent := gossip.sent()
		require.Len(t, sent, 1)
		require.Equal(t, p2p.MessageTypeChainRequest, sent[0].Type)

		var req p2p.ChainRequestPayload
		require.NoError(t, sent[0].ParsePayload(&req))
		assert.Equal(t, sender.String(), req.To)
		assert.Equal(t, gossip.ID().String(), req.From)
	})

	t.Run("tampered block triggers chain request, never append", func(t *testing.T) {
		n, gossip, chainStore := newTestNode(t)

		b1 := mineNext(t, blockchain.GenesisBlock, "honest")
		b1.Data = "tampered"

		msg := mustMessage(t, p2p.MessageTypeBlockBroadcast, p2p.BlockBroadcastPayload{Block: b1})
		n.HandleMessage(context.Background(), sender, msg)

		assert.Equal(t, uint64(1), chainStore.Height())
		require.Len(t, gossip.sent(), 1)
		assert.Equal(t, p2p.MessageTypeChainRequest, gossip.sent()[0].Type)
	})
}

func TestUnknownMessageIgnored(t *testing.T) {
	n, gossip, chainStore := newTestNode(t)

	n.HandleMessage(context.Background(), peer.ID("remote-peer"),
		&p2p.Message{Type: "gibberish"})

	assert.Equal(t, uint64(1), chainStore.Height())
	assert.Empty(t, gossip.sent())
}
