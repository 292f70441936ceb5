package metadata

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// memo is the Schema-owned get-or-compute cache.
type memo struct {
	mu     sync.Mutex
	values map[string]any
	group  singleflight.Group
}

func newMemo() *memo {
	return &memo{values: make(map[string]any)}
}

func (m *memo) get(key string, compute func() (any, error)) (any, error) {
	m.mu.Lock()
	v, found := m.values[key]
	m.mu.Unlock()
	if found {
		return v, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.Lock()
		if v, found := m.values[key]; found {
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		v, err := compute()
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, found := m.values[key]; found {
			return existing, nil
		}
		m.values[key] = v
		return v, nil
	})
	return v, err
}
