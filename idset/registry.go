package idset

import "sort"

// Registry is a reference-count multiset of usage keys: one count per key,
// incremented per active referencer. It is owned by the Cache and is not
// safe for concurrent use on its own; all access happens under the cache
// mutex.
type Registry struct {
	counts map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{counts: make(map[string]int)}
}

// Add records one more active reference to key.
func (r *Registry) Add(key string) {
	r.counts[key]++
}

// Remove releases one reference to key and returns the remaining count.
// Removing an absent key is a no-op returning zero.
func (r *Registry) Remove(key string) int {
	n, ok := r.counts[key]
	if !ok {
		return 0
	}
	if n <= 1 {
		delete(r.counts, key)
		return 0
	}
	r.counts[key] = n - 1
	return n - 1
}

// Contains reports whether key has at least one active reference.
func (r *Registry) Contains(key string) bool {
	return r.counts[key] > 0
}

// Count returns the number of active references to key.
func (r *Registry) Count(key string) int {
	return r.counts[key]
}

// Keys returns all keys with at least one reference, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.counts))
	for k := range r.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of active references across all keys.
func (r *Registry) Len() int {
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// Clear removes every reference for every key.
func (r *Registry) Clear() {
	r.counts = make(map[string]int)
}
