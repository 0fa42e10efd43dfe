package entities

import (
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

// Pool is the set of materialized entities a relationship reference resolves
// against, unique by type@id. Entities reachable from one document share
// the members of the same pool.
type Pool struct {
	members []*Entity
}

func NewPool(members ...*Entity) *Pool {
	p := &Pool{
		members: make([]*Entity, 0, len(members)),
	}

	p.Upsert(members...)

	return p
}

// Retrieve returns the first member matching type and id, or nil. A member
// without a pool of its own receives a clone of this one so that its own
// relationships resolve against the same entities.
func (p *Pool) Retrieve(resourceType, resourceID string) *Entity {
	idx := p.indexOf(types.NewResourceRef(resourceType, resourceID))
	if idx < 0 {
		return nil
	}

	member := p.members[idx]
	if member.pool == nil {
		member.pool = p.Clone()
	}

	return member
}

func (p *Pool) Contains(ref types.ResourceRef) bool {
	return p.indexOf(ref) >= 0
}

// Upsert adds entities to the pool, replacing any member with the same key
func (p *Pool) Upsert(entities ...*Entity) {
	for _, e := range entities {
		if e == nil {
			continue
		}

		if idx := p.indexOf(e.Ref()); idx >= 0 {
			p.members[idx] = e
			continue
		}

		p.add(e)
	}
}

// UpsertRefs adds minimal entities for references that have no member yet
func (p *Pool) UpsertRefs(refs ...types.ResourceRef) {
	for _, ref := range refs {
		if p.Contains(ref) {
			continue
		}

		p.add(New(ref.Type, ID(ref.ID)))
	}
}

// Clone returns a pool with the same member entities. Membership changes
// made to either pool afterwards are not visible in the other.
func (p *Pool) Clone() *Pool {
	c := &Pool{
		members: make([]*Entity, len(p.members)),
	}
	copy(c.members, p.members)
	return c
}

func (p *Pool) Len() int {
	return len(p.members)
}

func (p *Pool) add(e *Entity) {
	p.members = append(p.members, e)
}

func (p *Pool) indexOf(ref types.ResourceRef) int {
	key := ref.Key()
	for idx, m := range p.members {
		if m.Ref().Key() == key {
			return idx
		}
	}
	return -1
}
