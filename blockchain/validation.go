package blockchain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChain wraps every chain-level validation failure.
	ErrInvalidChain = errors.New("invalid chain")

	// ErrNotExtendingTip is returned when a block does not link onto the
	// block it is being appended after.
	ErrNotExtendingTip = errors.New("block does not extend tip")
)

// ValidateExtension checks that b validly extends prev: index increments by
// one, previous_hash links to prev's hash, the stored hash recomputes, and
// the hash meets the difficulty predicate.
func ValidateExtension(prev, b *Block, difficulty uint64) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", ErrNotExtendingTip)
	}
	if b.Index != prev.Index+1 {
		return fmt.Errorf("%w: index %d after %d", ErrNotExtendingTip, b.Index, prev.Index)
	}
	if b.PreviousHash != prev.Hash {
		return fmt.Errorf("%w: previous_hash %s does not match tip %s",
			ErrNotExtendingTip, b.PreviousHash, prev.Hash)
	}
	if !IsSelfConsistent(b) {
		return fmt.Errorf("%w: block %d hash does not recompute", ErrNotExtendingTip, b.Index)
	}
	if !HashMeetsDifficulty(b.Hash, difficulty) {
		return fmt.Errorf("%w: block %d hash %s misses difficulty %d",
			ErrNotExtendingTip, b.Index, b.Hash, difficulty)
	}
	return nil
}

// ValidateChain checks the full set of chain invariants: blocks[0] is
// exactly the genesis block, and every later block validly extends its
// predecessor, proof-of-work included.
func ValidateChain(c *Chain, difficulty uint64) error {
	if c.Length() == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidChain)
	}
	if !IsGenesis(c.Blocks[0]) {
		return fmt.Errorf("%w: first block is not genesis", ErrInvalidChain)
	}
	for i := 1; i < len(c.Blocks); i++ {
		if err := ValidateExtension(c.Blocks[i-1], c.Blocks[i], difficulty); err != nil {
			return fmt.Errorf("%w: position %d: %v", ErrInvalidChain, i, err)
		}
	}
	return nil
}
