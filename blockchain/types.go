package blockchain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	// DefaultDifficulty is the number of leading zero bits a block hash
	// must carry. Fixed process-wide, no retargeting.
	DefaultDifficulty = 8
)

// Hash32 is a sha256 digest. It renders as a hex string in JSON so chains
// stay readable on the wire and in `ls c` output.
type Hash32 [32]byte

func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(raw) != len(h) {
		return fmt.Errorf("invalid hash length: got %d bytes, want %d", len(raw), len(h))
	}
	copy(h[:], raw)
	return nil
}

// Block is one ledger entry. Hash is derived from all other fields and is
// never set independently; see HashBlock.
type Block struct {
	Index        uint64 `json:"index"`
	Timestamp    int64  `json:"timestamp"`
	Data         string `json:"data"`
	PreviousHash Hash32 `json:"previous_hash"`
	Nonce        uint64 `json:"nonce"`
	Hash         Hash32 `json:"hash"`
}

// Chain is the ordered block sequence a node considers authoritative,
// starting at the genesis block.
type Chain struct {
	Blocks []*Block `json:"blocks"`
}

// Tip returns the highest-index block, or nil for an empty chain.
func (c *Chain) Tip() *Block {
	if c == nil || len(c.Blocks) == 0 {
		return nil
	}
	return c.Blocks[len(c.Blocks)-1]
}

// Length returns the number of blocks in the chain.
func (c *Chain) Length() int {
	if c == nil {
		return 0
	}
	return len(c.Blocks)
}
