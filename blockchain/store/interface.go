package store

import (
	"ledgerd/blockchain"
)

// ChainStore is the single authoritative chain a node holds. Mutations are
// serialized by the implementation: Append and Replace each observe a
// consistent prior state and leave a consistent post-state, and readers
// never see a partially-applied mutation.
type ChainStore interface {
	// Append accepts a single block iff it validly extends the current tip.
	Append(block *blockchain.Block) error

	// Replace substitutes the whole chain after a remote chain wins
	// resolution. The replacement is re-validated inside the store so an
	// invalid chain can never become authoritative.
	Replace(chain *blockchain.Chain) error

	// Snapshot returns a read-only copy of the chain. The returned blocks
	// are shared and must be treated as immutable.
	Snapshot() *blockchain.Chain

	// Head returns the current tip.
	Head() *blockchain.Block

	// Height returns the number of blocks in the chain.
	Height() uint64
}
