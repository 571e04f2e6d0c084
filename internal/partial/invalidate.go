package partial

import (
	"github.com/google/uuid"

	"github.com/zjrosen/jsonpartial/internal/log"
)

// transitiveResolver is implemented by resolvers that can ask for
// invalidation to follow dependents of dependents.
type transitiveResolver interface {
	Transitive() bool
}

// invalidateFragment clears the rendered cache of every fragment that
// references a name changed is registered under.
func invalidateFragment(r Resolver, changed *Fragment) int {
	aliases := make(map[string]struct{})
	for _, entry := range r.Entries() {
		if entry.Fragment.id == changed.id {
			aliases[entry.Name] = struct{}{}
		}
	}
	if len(aliases) == 0 {
		return 0
	}
	return invalidateNames(r, aliases, changed)
}

// invalidateNames clears the rendered cache of every parsed fragment that
// references one of names, skipping origin itself. Only direct dependents
// are touched unless the resolver asks for transitive invalidation, in
// which case each invalidated fragment's own names are followed as well.
func invalidateNames(r Resolver, names map[string]struct{}, origin *Fragment) int {
	entries := r.Entries()

	transitive := false
	if tr, ok := r.(transitiveResolver); ok {
		transitive = tr.Transitive()
	}

	visited := map[uuid.UUID]bool{origin.id: true}
	invalidated := 0
	for len(names) > 0 {
		next := make(map[string]struct{})
		for _, entry := range entries {
			dep := entry.Fragment
			if visited[dep.id] || !dep.Parsed() || !dep.dependsOn(names) {
				continue
			}
			visited[dep.id] = true
			dep.Invalidate()
			invalidated++
			log.Debug(log.CatRegistry, "invalidated dependent", "name", entry.Name, "id", dep.id)

			if transitive {
				for _, other := range entries {
					if other.Fragment.id == dep.id {
						next[other.Name] = struct{}{}
					}
				}
			}
		}
		if !transitive {
			break
		}
		names = next
	}
	return invalidated
}
