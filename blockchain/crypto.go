package blockchain

import (
	"crypto/sha256"
	"encoding/binary"
)

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// HashBlock computes the deterministic digest of a block over
// (index, timestamp, data, previous_hash, nonce). The stored Hash field is
// ignored, so the function works on candidates and mined blocks alike.
func HashBlock(b *Block) Hash32 {
	h := sha256.New()
	h.Write(uint64ToBytes(b.Index))
	h.Write(uint64ToBytes(uint64(b.Timestamp)))
	h.Write(b.PreviousHash[:])
	h.Write(uint64ToBytes(uint64(len(b.Data))))
	h.Write([]byte(b.Data))
	h.Write(uint64ToBytes(b.Nonce))
	var hash Hash32
	copy(hash[:], h.Sum(nil))
	return hash
}

// IsSelfConsistent reports whether the stored hash recomputes from the
// block's own fields. A block failing this must never enter a chain.
func IsSelfConsistent(b *Block) bool {
	return b.Hash == HashBlock(b)
}
