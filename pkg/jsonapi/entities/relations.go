package entities

import (
	"fmt"
	"sort"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/errors"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

// GetRelation resolves a relationship to an *Entity (to-one) or a *Set (to-many).
// It returns nil, without building the resource pool, when the relationship
// carries no data. References missing from the pool are left out of a *Set.
func (e *Entity) GetRelation(name string) any {
	rel, ok := e.relationships[name]
	if !ok || !rel.Data.HasData() {
		return nil
	}

	if rel.Data.IsToMany() {
		return e.relatedSet(rel.Data)
	}

	if related := e.relatedEntity(rel.Data); related != nil {
		return related
	}

	return nil
}

// RelatedEntity resolves a to-one relationship
func (e *Entity) RelatedEntity(name string) (*Entity, bool) {
	rel, ok := e.relationships[name]
	if !ok || !rel.Data.HasData() || rel.Data.IsToMany() {
		return nil, false
	}

	related := e.relatedEntity(rel.Data)
	return related, related != nil
}

// RelatedSet resolves a to-many relationship
func (e *Entity) RelatedSet(name string) (*Set, bool) {
	rel, ok := e.relationships[name]
	if !ok || !rel.Data.IsToMany() {
		return nil, false
	}

	return e.relatedSet(rel.Data), true
}

func (e *Entity) relatedEntity(data types.RelationshipData) *Entity {
	ref, ok := data.Ref()
	if !ok {
		return nil
	}

	return e.buildPool().Retrieve(ref.Type, ref.ID)
}

func (e *Entity) relatedSet(data types.RelationshipData) *Set {
	pool := e.buildPool()

	refs := data.Refs()
	members := make([]*Entity, 0, len(refs))

	for _, ref := range refs {
		if member := pool.Retrieve(ref.Type, ref.ID); member != nil {
			members = append(members, member)
		}
	}

	return NewSet(members...)
}

// MissingReferences returns the references of a relationship that have no
// matching resource in the pool, i.e. the members GetRelation leaves out
func (e *Entity) MissingReferences(name string) []types.ResourceRef {
	rel, ok := e.relationships[name]
	if !ok || !rel.Data.HasData() {
		return nil
	}

	pool := e.buildPool()
	missing := []types.ResourceRef{}

	for _, ref := range rel.Data.Refs() {
		if !pool.Contains(ref) {
			missing = append(missing, ref)
		}
	}

	return missing
}

// GetRelationReferences returns the ids a relationship points at without
// materializing any entities. The result is nil if there are none.
func (e *Entity) GetRelationReferences(name string) []string {
	rel, ok := e.relationships[name]
	if !ok || !rel.Data.HasData() {
		return nil
	}

	refs := rel.Data.Refs()
	if len(refs) == 0 {
		return nil
	}

	if !rel.Data.IsToMany() && refs[0].ID == "" {
		return nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	return ids
}

// SetRelation assigns relationship data. Accepted values are *Entity, *Set,
// []*Entity, types.ResourceRef, []types.ResourceRef, types.RelationshipData,
// nil (an empty to-one) and bare ids (string or []string) for relationships
// whose type is already known. Referenced entities are added to the resource pool.
func (e *Entity) SetRelation(name string, data any) error {
	return e.SetRelations(map[string]any{name: data})
}

// SetRelations assigns several relationships at once. Nothing is assigned
// if any of the values is unsupported.
func (e *Entity) SetRelations(relations map[string]any) error {
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	type assignment struct {
		name     string
		data     types.RelationshipData
		entities []*Entity
	}

	assignments := make([]assignment, 0, len(names))

	for _, name := range names {
		data, members, err := e.normalizeRelation(name, relations[name])
		if err != nil {
			return err
		}
		assignments = append(assignments, assignment{name: name, data: data, entities: members})
	}

	pool := e.buildPool()

	for _, a := range assignments {
		if len(a.entities) > 0 {
			pool.Upsert(a.entities...)
		} else {
			pool.UpsertRefs(a.data.Refs()...)
		}

		rel := e.relationships[a.name]
		rel.Data = a.data
		e.relationships[a.name] = rel
	}

	return nil
}

func (e *Entity) normalizeRelation(name string, value any) (types.RelationshipData, []*Entity, error) {
	switch v := value.(type) {
	case nil:
		return types.NullData(), nil, nil
	case *Entity:
		if v == nil {
			return types.NullData(), nil, nil
		}
		return types.ToOne(v.Ref()), []*Entity{v}, nil
	case *Set:
		if v == nil {
			return types.ToMany(), nil, nil
		}
		return types.ToMany(v.Refs()...), v.Members(), nil
	case []*Entity:
		return types.ToMany(NewSet(v...).Refs()...), v, nil
	case types.ResourceRef:
		return types.ToOne(v), nil, nil
	case []types.ResourceRef:
		return types.ToMany(v...), nil, nil
	case types.RelationshipData:
		return v, nil, nil
	case string:
		resourceType, ok := e.knownRelationType(name)
		if !ok {
			return types.NoData(), nil, fmt.Errorf("no known type for id %q of relationship %s (%w)", v, name, errors.ErrUnsupportedRelation)
		}
		return types.ToOne(types.NewResourceRef(resourceType, v)), nil, nil
	case []string:
		resourceType, ok := e.knownRelationType(name)
		if !ok {
			return types.NoData(), nil, fmt.Errorf("no known type for ids of relationship %s (%w)", name, errors.ErrUnsupportedRelation)
		}
		refs := make([]types.ResourceRef, 0, len(v))
		for _, id := range v {
			refs = append(refs, types.NewResourceRef(resourceType, id))
		}
		return types.ToMany(refs...), nil, nil
	}

	return types.NoData(), nil, fmt.Errorf("value of type %T for relationship %s (%w)", value, name, errors.ErrUnsupportedRelation)
}

func (e *Entity) knownRelationType(name string) (string, bool) {
	rel, ok := e.relationships[name]
	if !ok {
		return "", false
	}

	for _, ref := range rel.Data.Refs() {
		if ref.Type != "" {
			return ref.Type, true
		}
	}

	return "", false
}

// buildPool materializes the resource pool from the raw included payload
// once. Members of the set this entity was parsed with take the place of
// their raw resources and receive a clone of the pool.
func (e *Entity) buildPool() *Pool {
	if e.pool != nil {
		return e.pool
	}

	pool := NewPool(e)

	if e.source != nil {
		for _, sibling := range e.source.members {
			if !pool.Contains(sibling.Ref()) {
				pool.add(sibling)
			}
		}
	}

	for _, raw := range e.included {
		if pool.Contains(raw.Ref()) {
			continue
		}

		m := newFromResource(raw)
		m.included = e.included
		pool.add(m)
	}

	e.pool = pool

	if e.source != nil {
		for _, sibling := range e.source.members {
			if sibling.pool == nil {
				sibling.pool = pool.Clone()
			}
		}
	}

	return pool
}
