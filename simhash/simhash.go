// Package simhash fingerprints result pages so pagination can tell whether
// the listing set actually changed after a click.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// UnchangedThreshold is the largest distance still treated as "same page".
const UnchangedThreshold = 3

// Fingerprint computes a 64-bit SimHash of the whitespace-separated words of text.
func Fingerprint(text string) uint64 {
	return FingerprintTokens(strings.Fields(text))
}

// FingerprintTokens computes a 64-bit SimHash over arbitrary tokens, such as
// the listing URLs of a page. FNV-64a per token with bit vector accumulation.
func FingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
