// Package registry accumulates contract → provider mappings for one
// discovery pass.
package registry

import (
	"maps"
	"slices"
)

// Registry maps contract names to the set of provider names recorded in the
// current pass. It only grows; create a new one per pass.
type Registry struct {
	services map[string]map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{services: make(map[string]map[string]struct{})}
}

// Record adds provider to contract's set. Recording the same pair again has
// no effect.
func (r *Registry) Record(contract, provider string) {
	set, ok := r.services[contract]
	if !ok {
		set = make(map[string]struct{})
		r.services[contract] = set
	}
	set[provider] = struct{}{}
}

// Contracts returns the recorded contract names in lexicographic order.
func (r *Registry) Contracts() []string {
	return slices.Sorted(maps.Keys(r.services))
}

// Providers returns contract's providers in lexicographic order, or nil if
// nothing was recorded for it.
func (r *Registry) Providers(contract string) []string {
	set, ok := r.services[contract]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}

// Len is the number of contracts recorded.
func (r *Registry) Len() int {
	return len(r.services)
}
