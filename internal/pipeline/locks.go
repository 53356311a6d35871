package pipeline

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// lockTable runs phase A once per fingerprint within a batch. Concurrent
// callers share the in-flight call; later callers get the memoized result.
type lockTable struct {
	group singleflight.Group

	mu   sync.Mutex
	done map[string]*prepared
}

func newLockTable() *lockTable {
	return &lockTable{done: make(map[string]*prepared)}
}

func (t *lockTable) lookup(key string) (*prepared, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.done[key]
	return p, ok
}

func (t *lockTable) do(key string, fn func() *prepared) *prepared {
	if p, ok := t.lookup(key); ok {
		return p
	}
	v, _, _ := t.group.Do(key, func() (any, error) {
		if p, ok := t.lookup(key); ok {
			return p, nil
		}
		p := fn()
		t.mu.Lock()
		t.done[key] = p
		t.mu.Unlock()
		return p, nil
	})
	return v.(*prepared)
}
