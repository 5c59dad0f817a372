package blockchain

import "time"

// NewCandidate builds an unmined block extending prev with the given
// payload. Nonce and Hash are left at their zero values; the candidate is
// not valid until mined (see Mine).
func NewCandidate(prev *Block, data string) *Block {
	return &Block{
		Index:        prev.Index + 1,
		Timestamp:    time.Now().Unix(),
		Data:         data,
		PreviousHash: prev.Hash,
	}
}
