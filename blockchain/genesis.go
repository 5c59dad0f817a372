package blockchain

// GenesisBlock is the fixed first block of every chain. It is hard-coded,
// not mined: fields are constants, the hash is derived once at init, and
// every node ends up with the identical block.
var GenesisBlock *Block

func init() {
	g := &Block{
		Index:        0,
		Timestamp:    0,
		Data:         "genesis!",
		PreviousHash: Hash32{}, // all-zero sentinel
		Nonce:        0,
	}
	g.Hash = HashBlock(g)
	GenesisBlock = g
}

// IsGenesis reports whether b is exactly the genesis block.
func IsGenesis(b *Block) bool {
	return b != nil && *b == *GenesisBlock
}
