package blockchain

import "testing"

func TestHashMeetsDifficulty(t *testing.T) {
	tests := []struct {
		name       string
		hash       Hash32
		difficulty uint64
		want       bool
	}{
		{"zero difficulty always passes", Hash32{0xff}, 0, true},
		{"one zero bit", Hash32{0x7f}, 1, true},
		{"one zero bit missing", Hash32{0x80}, 1, false},
		{"eight zero bits via zero byte", Hash32{0x00, 0xff}, 8, true},
		{"nine zero bits", Hash32{0x00, 0x7f}, 9, true},
		{"nine zero bits missing", Hash32{0x00, 0x80}, 9, false},
		{"partial byte count", Hash32{0x10}, 3, true},
		{"partial byte count missing", Hash32{0x10}, 4, false},
		{"all zero hash meets max", Hash32{}, 256, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashMeetsDifficulty(tt.hash, tt.difficulty); got != tt.want {
				t.Errorf("HashMeetsDifficulty(%s, %d) = %v, want %v",
					tt.hash, tt.difficulty, got, tt.want)
			}
		})
	}
}
