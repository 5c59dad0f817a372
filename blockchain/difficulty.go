package blockchain

// HashMeetsDifficulty reports whether the hash carries at least
// `difficulty` leading zero bits.
func HashMeetsDifficulty(hash Hash32, difficulty uint64) bool {
	leadingZeros := uint64(0)
	for _, b := range hash {
		if b == 0 {
			leadingZeros += 8
			if leadingZeros >= difficulty {
				return true
			}
			continue
		}
		for i := 7; i >= 0; i-- {
			if (b >> i) != 0 {
				break
			}
			leadingZeros++
		}
		break
	}
	return leadingZeros >= difficulty
}
