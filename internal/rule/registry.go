package rule

import (
	"fmt"
	"sync"
)

// Registry holds rules in registration order.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry[T any] struct {
	mu    sync.RWMutex
	rules []Rule[T]
	index map[string]int
}

// NewRegistry creates a Registry holding rules, in order.
func NewRegistry[T any](rules ...Rule[T]) *Registry[T] {
	r := &Registry[T]{index: make(map[string]int)}
	for _, rl := range rules {
		r.Register(rl)
	}
	return r
}

// Register appends a rule. Panics on duplicate name to surface misconfiguration early.
func (r *Registry[T]) Register(rl Rule[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[rl.Name()]; exists {
		panic(fmt.Sprintf("rule registry: duplicate name %q", rl.Name()))
	}
	r.index[rl.Name()] = len(r.rules)
	r.rules = append(r.rules, rl)
}

// Get returns the rule registered under name.
func (r *Registry[T]) Get(name string) (Rule[T], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("no rule registered under name %q", name)
	}
	return r.rules[i], nil
}

// Rules returns a snapshot of the registered rules in registration order.
func (r *Registry[T]) Rules() []Rule[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule[T], len(r.rules))
	copy(out, r.rules)
	return out
}

// Names returns the registered rule names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rules))
	for _, rl := range r.rules {
		out = append(out, rl.Name())
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
