// Package blocklist is the read-optimized enforcement store. Readers take a
// single immutable snapshot reference per check and never lock; the write
// path is single-writer copy-on-write with full-file persistence.
package blocklist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/willf/bloom"
	"go.uber.org/zap"

	"dnssentinel/internal/classify"
)

const (
	domainFileName = "blocklist_domains.txt"
	addrFileName   = "blocklist_addrs.txt"

	bloomFalsePositiveRate = 0.001
	bloomMinCapacity       = 1024
)

// Snapshot is one immutable published generation of the blocklist. Old
// snapshots stay valid for readers that already hold them.
type Snapshot struct {
	domains map[string]struct{}
	addrs   map[string]struct{}
	filter  *bloom.BloomFilter
	version uint64
}

// Version identifies the published generation; it only changes when the
// content strictly grows.
func (s *Snapshot) Version() uint64 { return s.version }

// MatchDomain walks from the full name toward the root, stripping the
// leftmost label each step, and returns the first blocked suffix.
func (s *Snapshot) MatchDomain(name string) (string, bool) {
	candidate := strings.ToLower(strings.TrimSuffix(name, "."))
	for candidate != "" {
		if s.filter.TestString(candidate) {
			if _, ok := s.domains[candidate]; ok {
				return candidate, true
			}
		}
		dot := strings.IndexByte(candidate, '.')
		if dot == -1 {
			break
		}
		candidate = candidate[dot+1:]
	}
	return "", false
}

// BlockedAddr tests exact membership of a client address.
func (s *Snapshot) BlockedAddr(addr string) bool {
	_, ok := s.addrs[strings.ToLower(addr)]
	return ok
}

// Store owns blocklist persistence and snapshot publication.
type Store struct {
	domainPath string
	addrPath   string
	log        *zap.SugaredLogger

	mu   sync.Mutex // serializes the update path
	snap atomic.Pointer[Snapshot]
}

func NewStore(dataDir string, log *zap.SugaredLogger) *Store {
	s := &Store{
		domainPath: filepath.Join(dataDir, domainFileName),
		addrPath:   filepath.Join(dataDir, addrFileName),
		log:        log,
	}
	s.snap.Store(newSnapshot(nil, nil, 0))
	return s
}

// Current returns the published snapshot. This is the only operation on
// the per-request hot path.
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Load reads both line-delimited stores from disk and publishes the result.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := readLines(s.domainPath)
	if err != nil {
		return fmt.Errorf("read domain blocklist: %w", err)
	}
	addrs, err := readLines(s.addrPath)
	if err != nil {
		return fmt.Errorf("read address blocklist: %w", err)
	}

	s.snap.Store(newSnapshot(domains, addrs, s.snap.Load().version+1))
	s.log.Infow("blocklist loaded", "domains", len(domains), "addrs", len(addrs))
	return nil
}

// Add unions the given indicators into the blocklist. Re-adding known
// entries is a no-op: no rewrite, no republish. When the content grows the
// new snapshot is published immediately and then persisted; a persistence
// failure is returned so the caller can surface the durability gap, but
// enforcement stays effective in memory.
func (s *Store) Add(indicators []classify.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	domains := copySet(cur.domains)
	addrs := copySet(cur.addrs)
	grewDomains, grewAddrs := false, false

	for _, ind := range indicators {
		v := strings.ToLower(strings.TrimSuffix(ind.Value, "."))
		if v == "" {
			continue
		}
		switch ind.Type {
		case classify.IndicatorDomain, classify.IndicatorNxDomain:
			if _, ok := domains[v]; !ok {
				domains[v] = struct{}{}
				grewDomains = true
			}
		case classify.IndicatorAddr:
			if _, ok := addrs[v]; !ok {
				addrs[v] = struct{}{}
				grewAddrs = true
			}
		}
	}
	if !grewDomains && !grewAddrs {
		return nil
	}

	s.snap.Store(newSnapshot(domains, addrs, cur.version+1))

	var errs []string
	if grewDomains {
		if err := writeLines(s.domainPath, domains); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if grewAddrs {
		if err := writeLines(s.addrPath, addrs); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("blocklist persisted in memory only: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Sizes reports entry counts of the published snapshot.
func (s *Store) Sizes() (domains, addrs int) {
	cur := s.snap.Load()
	return len(cur.domains), len(cur.addrs)
}

// Domains returns the blocked domains of the published snapshot.
func (s *Store) Domains() []string { return keys(s.snap.Load().domains) }

// Addrs returns the blocked addresses of the published snapshot.
func (s *Store) Addrs() []string { return keys(s.snap.Load().addrs) }

func newSnapshot(domains, addrs map[string]struct{}, version uint64) *Snapshot {
	if domains == nil {
		domains = make(map[string]struct{})
	}
	if addrs == nil {
		addrs = make(map[string]struct{})
	}
	capacity := uint(len(domains))
	if capacity < bloomMinCapacity {
		capacity = bloomMinCapacity
	}
	filter := bloom.NewWithEstimates(capacity, bloomFalsePositiveRate)
	for d := range domains {
		filter.AddString(d)
	}
	return &Snapshot{domains: domains, addrs: addrs, filter: filter, version: version}
}

func readLines(path string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.ToLower(strings.TrimSpace(sc.Text()))
		if line == "" {
			continue
		}
		out[line] = struct{}{}
	}
	return out, sc.Err()
}

func writeLines(path string, entries map[string]struct{}) error {
	var b strings.Builder
	for e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func copySet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func keys(src map[string]struct{}) []string {
	out := make([]string, 0, len(src))
	for k := range src {
		out = append(out, k)
	}
	return out
}
