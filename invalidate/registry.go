// Package invalidate maps writes to the cache keys they stale and deletes
// those keys in the request that performed the write.
//
// There is no pattern delete. Every derived key must be listed by the key
// function of each mutation that can change it; a key that is missing from
// the mapping is served stale until its TTL runs out.
package invalidate

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnmapped is returned for a mutation whose kind has no registered keys.
var ErrUnmapped = errors.New("invalidate: no keys registered for mutation kind")

// Kind names a class of write, e.g. "feature_toggled".
type Kind string

// Mutation is a write to the source of truth. Kind must work on the zero
// value, so implement it on a value receiver.
type Mutation interface {
	Kind() Kind
}

type keyFunc func(Mutation) []string

// Registry is the mutation-kind to key-function table. Safe for concurrent
// use; registration normally happens once at startup.
type Registry struct {
	mu sync.RWMutex
	m  map[Kind][]keyFunc
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[Kind][]keyFunc)}
}

// Register adds fn as a key function for M's kind. Several functions may be
// registered for one kind; their keys are merged.
func Register[M Mutation](r *Registry, fn func(M) []string) {
	var zero M
	kind := zero.Kind()
	if kind == "" {
		panic(fmt.Sprintf("invalidate: %T has an empty kind", zero))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[kind] = append(r.m[kind], func(m Mutation) []string {
		mm, ok := m.(M)
		if !ok {
			return nil
		}
		return fn(mm)
	})
}

// Keys returns the de-duplicated keys m stales, in registration order.
func (r *Registry) Keys(m Mutation) ([]string, error) {
	r.mu.RLock()
	fns, ok := r.m[m.Kind()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnmapped, m.Kind())
	}

	var out []string
	seen := make(map[string]struct{})
	for _, fn := range fns {
		for _, k := range fn(m) {
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out, nil
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
