package blocklist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dnssentinel/internal/classify"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), zap.NewNop().Sugar())
}

func TestDomainSuffixMatching(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add([]classify.Indicator{{Type: classify.IndicatorDomain, Value: "evil.com"}}))

	snap := s.Current()
	for _, name := range []string{"evil.com", "www.evil.com", "a.b.evil.com", "EVIL.COM", "www.evil.com."} {
		match, ok := snap.MatchDomain(name)
		assert.Truef(t, ok, "%s should match", name)
		assert.Equal(t, "evil.com", match)
	}

	_, ok := snap.MatchDomain("notevil.com")
	assert.False(t, ok)
	_, ok = snap.MatchDomain("evil.com.example.org")
	assert.False(t, ok)
}

func TestAddrMatching(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add([]classify.Indicator{{Type: classify.IndicatorAddr, Value: "192.0.2.1"}}))

	assert.True(t, s.Current().BlockedAddr("192.0.2.1"))
	assert.False(t, s.Current().BlockedAddr("192.0.2.2"))
}

func TestIdempotentAddDoesNotRepublish(t *testing.T) {
	s := newTestStore(t)
	indicators := []classify.Indicator{
		{Type: classify.IndicatorDomain, Value: "evil.com"},
		{Type: classify.IndicatorAddr, Value: "192.0.2.1"},
	}
	require.NoError(t, s.Add(indicators))
	v1 := s.Current().Version()

	// Re-adding known entries must not rewrite storage or republish.
	require.NoError(t, s.Add(indicators))
	assert.Equal(t, v1, s.Current().Version())

	require.NoError(t, s.Add([]classify.Indicator{{Type: classify.IndicatorNxDomain, Value: "other.net"}}))
	assert.Greater(t, s.Current().Version(), v1)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := zap.NewNop().Sugar()

	s := NewStore(dir, log)
	require.NoError(t, s.Add([]classify.Indicator{
		{Type: classify.IndicatorDomain, Value: "Evil.COM"},
		{Type: classify.IndicatorNxDomain, Value: "probe.example"},
		{Type: classify.IndicatorAddr, Value: "198.51.100.3"},
	}))

	reloaded := NewStore(dir, log)
	require.NoError(t, reloaded.Load())

	_, ok := reloaded.Current().MatchDomain("sub.evil.com")
	assert.True(t, ok)
	_, ok = reloaded.Current().MatchDomain("probe.example")
	assert.True(t, ok)
	assert.True(t, reloaded.Current().BlockedAddr("198.51.100.3"))

	domains, addrs := reloaded.Sizes()
	assert.Equal(t, 2, domains)
	assert.Equal(t, 1, addrs)
}

func TestLoadWithoutFilesStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load())
	domains, addrs := s.Sizes()
	assert.Zero(t, domains)
	assert.Zero(t, addrs)
}

func TestPersistFailureStillPublishes(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zap.NewNop().Sugar())

	// Make the domain file path unwritable by occupying it with a directory.
	require.NoError(t, os.Mkdir(filepath.Join(dir, domainFileName), 0o755))

	err := s.Add([]classify.Indicator{{Type: classify.IndicatorDomain, Value: "evil.com"}})
	require.Error(t, err)

	// Enforcement is effective immediately despite the durability gap.
	_, ok := s.Current().MatchDomain("evil.com")
	assert.True(t, ok)
}
