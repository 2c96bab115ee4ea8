package profile

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Entropy returns the base-2 Shannon entropy of s over its character
// frequency distribution. Empty strings and single-symbol strings score 0.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	var entropy float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// NumericRatio returns the fraction of characters in s that are digits.
func NumericRatio(s string) float64 {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return float64(n) / float64(len([]rune(s)))
}

// NonAlphanumericRatio returns the fraction of characters in s that are
// neither letters nor digits.
func NonAlphanumericRatio(s string) float64 {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			n++
		}
	}
	return float64(n) / float64(len([]rune(s)))
}

// TLD extracts the top-level label of a domain name, ignoring a trailing
// root dot. Returns "" when the name has no dot-separated suffix.
func TLD(domain string) string {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return ""
	}
	lastDot := strings.LastIndexByte(domain, '.')
	if lastDot == -1 || lastDot == len(domain)-1 {
		return ""
	}
	return domain[lastDot+1:]
}

// iatStats computes the mean and population standard deviation of the
// inter-arrival gaps between consecutive timestamps, in milliseconds.
// Fewer than two samples yield (0, 0).
func iatStats(timestamps []time.Time) (mean, stddev float64) {
	if len(timestamps) < 2 {
		return 0, 0
	}
	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gaps = append(gaps, float64(timestamps[i].Sub(timestamps[i-1]).Microseconds())/1000.0)
	}
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean = sum / float64(len(gaps))
	var sq float64
	for _, g := range gaps {
		sq += (g - mean) * (g - mean)
	}
	return mean, math.Sqrt(sq / float64(len(gaps)))
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
