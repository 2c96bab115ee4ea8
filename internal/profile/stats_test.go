package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"empty string", "", 0},
		{"single repeated character", "aaaaaaaa", 0},
		{"two distinct characters", "ab", 1.0},
		{"four distinct characters", "abcd", 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Entropy(tt.input), 1e-9)
		})
	}
}

func TestEntropyOrdering(t *testing.T) {
	// Random-looking DGA labels should score well above common words.
	assert.Greater(t, Entropy("xj3kq9vz2m8wp4ty"), Entropy("mail"))
}

func TestNumericRatio(t *testing.T) {
	assert.Equal(t, 0.0, NumericRatio(""))
	assert.Equal(t, 0.0, NumericRatio("example"))
	assert.Equal(t, 1.0, NumericRatio("12345"))
	assert.InDelta(t, 0.5, NumericRatio("ab12"), 1e-9)
}

func TestNonAlphanumericRatio(t *testing.T) {
	assert.Equal(t, 0.0, NonAlphanumericRatio(""))
	assert.Equal(t, 0.0, NonAlphanumericRatio("abc123"))
	assert.InDelta(t, 0.25, NonAlphanumericRatio("ab-c"), 1e-9)
}

func TestTLD(t *testing.T) {
	assert.Equal(t, "com", TLD("example.com"))
	assert.Equal(t, "com", TLD("a.b.example.com."))
	assert.Equal(t, "", TLD("localhost"))
	assert.Equal(t, "", TLD(""))
}

func TestIATStats(t *testing.T) {
	base := time.Unix(0, 0)

	mean, stdev := iatStats(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stdev)

	mean, stdev = iatStats([]time.Time{base})
	assert.Zero(t, mean)
	assert.Zero(t, stdev)

	// Evenly spaced queries: 100ms gaps, zero deviation.
	evenly := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(200 * time.Millisecond),
		base.Add(300 * time.Millisecond),
	}
	mean, stdev = iatStats(evenly)
	assert.InDelta(t, 100.0, mean, 1e-9)
	assert.InDelta(t, 0.0, stdev, 1e-9)

	// Gaps of 100ms and 300ms: mean 200, population stddev 100.
	uneven := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(400 * time.Millisecond),
	}
	mean, stdev = iatStats(uneven)
	assert.InDelta(t, 200.0, mean, 1e-9)
	assert.InDelta(t, 100.0, stdev, 1e-9)
}
