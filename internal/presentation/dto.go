package presentation

import (
	"github.com/zjrosen/jsonpartial/internal/partial"
)

// PartialDTO describes one registered partial for listing.
type PartialDTO struct {
	Name       string   `json:"name"`
	Origin     string   `json:"origin,omitempty"`
	References []string `json:"references"` // always present, sorted
	Aliases    []string `json:"aliases"`    // other names for the same fragment
}

// FromRegistry converts every registry entry to a DTO, in name order.
func FromRegistry(r *partial.Registry) []PartialDTO {
	entries := r.Entries()
	dtos := make([]PartialDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, FromEntry(r, entry))
	}
	return dtos
}

// FromEntry converts a single entry.
func FromEntry(r *partial.Registry, entry partial.Entry) PartialDTO {
	refs := entry.Fragment.ReferencedNames()
	if refs == nil {
		refs = []string{}
	}

	aliases := []string{}
	for _, name := range r.Aliases(entry.Fragment) {
		if name != entry.Name {
			aliases = append(aliases, name)
		}
	}

	return PartialDTO{
		Name:       entry.Name,
		Origin:     entry.Fragment.Origin(),
		References: refs,
		Aliases:    aliases,
	}
}
