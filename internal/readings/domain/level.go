package readings

import (
	"math"
	"strconv"
	"strings"
)

// ParseLevel extracts the leading decimal literal of a field such as "70.5 dB".
// Trailing unit text is ignored. Input without a leading number yields 0.
// Non-finite values ("Infinity", or literals that overflow float64) also
// yield 0 so every parsed level stays JSON encodable.
func ParseLevel(text string) float64 {
	s := strings.TrimLeft(text, " \t\n\r\v\f")
	end := numericPrefix(s)
	if end == 0 {
		return 0
	}
	value, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0
	}
	return value
}

// numericPrefix returns the length of the longest prefix of s that forms a
// decimal literal: [sign] digits [. digits] [e [sign] digits].
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
