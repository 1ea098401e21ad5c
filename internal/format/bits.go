package format

import "strings"

// Bits renders the low n bits of word least significant bit first, with a space
// between every group of groupSize bits. groupSize <= 0 disables grouping.
//
//	Bits(0b1011, 8, 4) == "1101 0000"
func Bits(word uint64, n, groupSize int) string {
	var sb strings.Builder
	sb.Grow(n + n/max(groupSize, 1))
	for i := range n {
		if groupSize > 0 && i != 0 && i%groupSize == 0 {
			sb.WriteByte(' ')
		}
		if word&(1<<uint(i)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Word renders all 64 bits of word in groups of 8.
func Word(word uint64) string {
	return Bits(word, 64, 8)
}

// BitsMulti renders the first n bits of a multi-word bitmap in groups of groupSize,
// one line of at most 64 bits per word.
func BitsMulti(words []uint64, n, groupSize int) []string {
	lines := make([]string, 0, len(words))
	for i, word := range words {
		count := min(n-i*64, 64)
		if count <= 0 {
			break
		}
		lines = append(lines, Bits(word, count, groupSize))
	}
	return lines
}
