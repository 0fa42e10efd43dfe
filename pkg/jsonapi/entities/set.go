package entities

import (
	"fmt"
	"strings"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

// Set is an ordered collection of entities
type Set struct {
	members []*Entity

	url  string
	meta map[string]any
}

// NewSet returns a set holding the supplied entities. Entities keep the pools
// and source sets they already have.
func NewSet(members ...*Entity) *Set {
	s := &Set{
		members: make([]*Entity, 0, len(members)),
	}

	for _, m := range members {
		if m != nil {
			s.members = append(s.members, m)
		}
	}

	return s
}

// NewSetFromDocument materializes every primary resource of a collection
// document. Each member may resolve relationships against every primary
// and included resource of the document.
func NewSetFromDocument(doc types.Document) *Set {
	s := &Set{
		meta: doc.Meta,
	}

	resources := doc.Resources()
	if !doc.IsCollection() && doc.Resource().IsEmpty() {
		resources = nil
	}

	included := make([]types.ResourceObject, 0, len(resources)+len(doc.Included))
	included = append(included, resources...)
	included = append(included, doc.Included...)

	s.members = make([]*Entity, 0, len(resources))
	for _, resource := range resources {
		e := newFromResource(resource)
		e.included = included
		e.source = s
		s.members = append(s.members, e)
	}

	return s
}

func NewSetFromJSON(body []byte) (*Set, error) {
	doc, err := types.ParseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity set: %w", err)
	}

	return NewSetFromDocument(doc), nil
}

func (s *Set) Len() int {
	return len(s.members)
}

// At returns the entity at index idx, or nil if idx is out of range
func (s *Set) At(idx int) *Entity {
	if idx < 0 || idx >= len(s.members) {
		return nil
	}
	return s.members[idx]
}

func (s *Set) Members() []*Entity {
	members := make([]*Entity, len(s.members))
	copy(members, s.members)
	return members
}

// Find returns the first member with the supplied type and id
func (s *Set) Find(entityType, entityID string) *Entity {
	for _, m := range s.members {
		if m.Type() == entityType && m.ID() == entityID {
			return m
		}
	}
	return nil
}

// Slice returns a new set with the members in [from, to)
func (s *Set) Slice(from, to int) *Set {
	from = max(0, min(from, len(s.members)))
	to = max(from, min(to, len(s.members)))

	return NewSet(s.members[from:to]...)
}

// Pluck returns the value of path for every member, in order
func (s *Set) Pluck(path string) []any {
	return s.pluck(strings.Split(path, "."))
}

func (s *Set) pluck(path []string) []any {
	values := make([]any, 0, len(s.members))
	for _, m := range s.members {
		values = append(values, m.get(path))
	}
	return values
}

func (s *Set) Refs() []types.ResourceRef {
	refs := make([]types.ResourceRef, 0, len(s.members))
	for _, m := range s.members {
		refs = append(refs, m.Ref())
	}
	return refs
}

// URL returns the address the set was fetched from
func (s *Set) URL() string {
	return s.url
}

func (s *Set) SetURL(url string) *Set {
	s.url = url
	return s
}

func (s *Set) Meta() map[string]any {
	return s.meta
}

// Replace takes over the members of another set, e.g. after a re-fetch
func (s *Set) Replace(other *Set) {
	s.members = other.Members()
	s.meta = other.meta

	for _, m := range s.members {
		if m.source == other {
			m.source = s
		}
	}
}
