package blockchain

import "context"

// How many nonces to try between cancellation checks. The select is cheap
// but not free, and a single sha256 round is far cheaper.
const cancelCheckInterval = 4096

// Mine searches nonce values from 0 upward until the candidate's digest
// meets the difficulty predicate, then returns a copy with Nonce and Hash
// set. The search has no failure mode of its own and no upper bound; the
// only way out besides success is ctx cancellation, which callers use to
// abandon work when the local tip advances.
func Mine(ctx context.Context, candidate *Block, difficulty uint64) (*Block, error) {
	b := *candidate
	for nonce := uint64(0); ; nonce++ {
		if nonce%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		b.Nonce = nonce
		hash := HashBlock(&b)
		if HashMeetsDifficulty(hash, difficulty) {
			b.Hash = hash
			return &b, nil
		}
	}
}
