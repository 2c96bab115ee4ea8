package profile

import (
	"sync"
	"sync/atomic"
)

// Registry holds the live per-client accumulators. The hot path writes into
// the current generation; Rotate atomically detaches the whole generation
// and installs an empty one, so every update is attributed to exactly one
// rotation window.
type Registry struct {
	gen atomic.Pointer[generation]
}

type generation struct {
	profiles sync.Map // client addr -> *Profile
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.gen.Store(&generation{})
	return r
}

// Get returns the live profile for a client, creating it on first sight.
func (r *Registry) Get(clientAddr string) *Profile {
	g := r.gen.Load()
	if p, ok := g.profiles.Load(clientAddr); ok {
		return p.(*Profile)
	}
	p, _ := g.profiles.LoadOrStore(clientAddr, New())
	return p.(*Profile)
}

// Rotate detaches the active generation and installs a fresh one. The
// returned map is owned by the caller; no live-path writer can reach it
// after the swap.
func (r *Registry) Rotate() map[string]*Profile {
	old := r.gen.Swap(&generation{})
	detached := make(map[string]*Profile)
	old.profiles.Range(func(k, v any) bool {
		detached[k.(string)] = v.(*Profile)
		return true
	})
	return detached
}

// Len reports the number of clients tracked in the live generation.
func (r *Registry) Len() int {
	n := 0
	r.gen.Load().profiles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
