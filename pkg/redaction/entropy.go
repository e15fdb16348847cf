package redaction

import "math"

// shannonEntropy returns the Shannon entropy, in bits per character, of
// s (spec §4.5 layer 100: "Shannon-entropy > 4.5 on contiguous URL-safe
// runs >= 20 chars").
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// luhnValid reports whether digits (a string of ASCII digits with no
// separators) passes the Luhn checksum (spec §4.5 layer 200, "credit-card
// (Luhn-validated)").
func luhnValid(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
