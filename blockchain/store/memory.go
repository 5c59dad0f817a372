package store

import (
	"fmt"
	"sync"

	"ledgerd/blockchain"
)

// MemoryChainStore keeps the chain in memory behind a RWMutex. Nothing is
// persisted; process exit discards all state.
type MemoryChainStore struct {
	mu         sync.RWMutex
	chain      *blockchain.Chain
	difficulty uint64
}

// NewMemoryChainStore creates a store seeded with the genesis block. A
// chain is never empty, so the genesis block is present from the start.
func NewMemoryChainStore(difficulty uint64) *MemoryChainStore {
	return &MemoryChainStore{
		chain: &blockchain.Chain{
			Blocks: []*blockchain.Block{blockchain.GenesisBlock},
		},
		difficulty: difficulty,
	}
}

func (m *MemoryChainStore) Append(block *blockchain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.chain.Tip()
	if err := blockchain.ValidateExtension(tip, block, m.difficulty); err != nil {
		return err
	}
	m.chain.Blocks = append(m.chain.Blocks, block)
	return nil
}

func (m *MemoryChainStore) Replace(chain *blockchain.Chain) error {
	if err := blockchain.ValidateChain(chain, m.difficulty); err != nil {
		return fmt.Errorf("refusing replacement: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the slice header so later appends to the store never alias the
	// caller's chain.
	blocks := make([]*blockchain.Block, len(chain.Blocks))
	copy(blocks, chain.Blocks)
	m.chain = &blockchain.Chain{Blocks: blocks}
	return nil
}

func (m *MemoryChainStore) Snapshot() *blockchain.Chain {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]*blockchain.Block, len(m.chain.Blocks))
	copy(blocks, m.chain.Blocks)
	return &blockchain.Chain{Blocks: blocks}
}

func (m *MemoryChainStore) Head() *blockchain.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain.Tip()
}

func (m *MemoryChainStore) Height() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.chain.Blocks))
}
