package entities

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

// Entity is a single typed and identified node of a JSON:API resource graph.
// Entities are not safe for concurrent use.
type Entity struct {
	entityType string
	entityID   string

	attributes    map[string]any
	relationships map[string]types.Relationship

	url string

	// included is the flattened [primary] + included payload last received
	included []types.ResourceObject
	pool     *Pool
	source   *Set
}

type EntityDecoratorFunc func(e *Entity)

// New creates a bare, unpersisted entity of the supplied type
func New(entityType string, decorators ...EntityDecoratorFunc) *Entity {
	e := &Entity{
		entityType:    entityType,
		attributes:    map[string]any{},
		relationships: map[string]types.Relationship{},
	}

	for _, decorator := range decorators {
		decorator(e)
	}

	return e
}

// NewFromDocument materializes the primary resource of a single resource document
func NewFromDocument(doc types.Document) *Entity {
	resource := doc.Resource()

	e := newFromResource(resource)
	e.included = append([]types.ResourceObject{resource}, doc.Included...)

	return e
}

func NewFromJSON(body []byte) (*Entity, error) {
	doc, err := types.ParseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return NewFromDocument(doc), nil
}

func newFromResource(resource types.ResourceObject) *Entity {
	return &Entity{
		entityType:    resource.Type,
		entityID:      resource.ID,
		attributes:    copyAttributes(resource.Attributes),
		relationships: copyRelationships(resource.Relationships),
	}
}

func ID(entityID string) EntityDecoratorFunc {
	return func(e *Entity) { e.entityID = entityID }
}

func A(name string, value any) EntityDecoratorFunc {
	return func(e *Entity) { e.Set(name, value) }
}

func Attributes(attributes map[string]any) EntityDecoratorFunc {
	return func(e *Entity) { e.SetAttributes(attributes) }
}

func R(name string, data types.RelationshipData) EntityDecoratorFunc {
	return func(e *Entity) { e.relationships[name] = types.NewRelationship(data) }
}

func URL(url string) EntityDecoratorFunc {
	return func(e *Entity) { e.url = url }
}

func (e *Entity) Type() string {
	return e.entityType
}

func (e *Entity) SetType(entityType string) *Entity {
	e.entityType = entityType
	return e
}

func (e *Entity) ID() string {
	return e.entityID
}

// IsNew reports whether the entity lacks a persisted identity
func (e *Entity) IsNew() bool {
	return e.entityID == ""
}

func (e *Entity) Ref() types.ResourceRef {
	return types.NewResourceRef(e.entityType, e.entityID)
}

// URL returns the resource URL this entity is saved to, if it has been overridden
func (e *Entity) URL() string {
	return e.url
}

func (e *Entity) SetURL(url string) *Entity {
	e.url = url
	return e
}

// Get resolves a single name or a dotted path of names. Relationship names
// are resolved through the entity's resource pool, anything else is treated
// as an attribute. Absent hops yield nil.
func (e *Entity) Get(path string) any {
	return e.get(strings.Split(path, "."))
}

func (e *Entity) get(path []string) any {
	name := path[0]

	if rel, ok := e.relationships[name]; ok {
		if !rel.Data.HasData() {
			return nil
		}

		if rel.Data.IsToMany() {
			related := e.relatedSet(rel.Data)
			if len(path) > 1 {
				return related.pluck(path[1:])
			}
			return related
		}

		related := e.relatedEntity(rel.Data)
		if related == nil {
			return nil
		}

		if len(path) > 1 {
			return related.get(path[1:])
		}
		return related
	}

	value, ok := e.Attribute(name)
	if !ok {
		return nil
	}

	return value
}

// Attribute returns a plain attribute value. The names id and type read the
// entity's identity.
func (e *Entity) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return e.entityID, e.entityID != ""
	case "type":
		return e.entityType, e.entityType != ""
	}

	value, ok := e.attributes[name]
	return value, ok
}

// Set assigns an attribute. Assigning id or type changes the entity's identity.
func (e *Entity) Set(name string, value any) *Entity {
	switch name {
	case "id":
		e.entityID = identityString(value)
	case "type":
		e.entityType = identityString(value)
	default:
		e.attributes[name] = value
	}

	return e
}

func (e *Entity) SetAttributes(attributes map[string]any) *Entity {
	for k, v := range attributes {
		e.Set(k, v)
	}
	return e
}

// Unset removes an attribute. Unsetting id removes the persisted identity.
func (e *Entity) Unset(name string) *Entity {
	if name == "id" {
		e.entityID = ""
		return e
	}

	delete(e.attributes, name)
	return e
}

// Attributes returns a copy of the plain attributes, identity excluded
func (e *Entity) Attributes() map[string]any {
	return copyAttributes(e.attributes)
}

func (e *Entity) AttributeNames() []string {
	names := make([]string, 0, len(e.attributes))
	for k := range e.attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Relationship returns the descriptor of a named relationship without resolving it
func (e *Entity) Relationship(name string) (types.Relationship, bool) {
	rel, ok := e.relationships[name]
	return rel, ok
}

func (e *Entity) RelationshipNames() []string {
	names := make([]string, 0, len(e.relationships))
	for k := range e.relationships {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ResourceObject returns the wire representation of the entity's current state
func (e *Entity) ResourceObject() types.ResourceObject {
	return types.ResourceObject{
		Type:          e.entityType,
		ID:            e.entityID,
		Attributes:    copyAttributes(e.attributes),
		Relationships: copyRelationships(e.relationships),
	}
}

// Apply replaces the entity's state with the primary resource of a response
// document. The resource pool is dropped and rebuilt on the next relationship read.
func (e *Entity) Apply(doc types.Document) {
	resource := doc.Resource()

	if resource.ID != "" {
		e.entityID = resource.ID
	}

	if resource.Type != "" {
		e.entityType = resource.Type
	}

	e.attributes = copyAttributes(resource.Attributes)
	e.relationships = copyRelationships(resource.Relationships)

	e.included = append([]types.ResourceObject{resource}, doc.Included...)
	e.pool = nil
}

// Snapshot is a saved copy of an entity's local state, see Entity.Snapshot
type Snapshot struct {
	entityType string
	entityID   string

	attributes    map[string]any
	relationships map[string]types.Relationship

	included []types.ResourceObject
	pool     *Pool
	members  []*Entity
}

// Snapshot captures identity, attributes, relationships and resource pool
// membership so that a failed change can be undone with Restore.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		entityType:    e.entityType,
		entityID:      e.entityID,
		attributes:    copyAttributes(e.attributes),
		relationships: copyRelationships(e.relationships),
		included:      e.included,
		pool:          e.pool,
	}

	if e.pool != nil {
		s.members = append([]*Entity(nil), e.pool.members...)
	}

	return s
}

// Restore puts the entity back into the state captured by Snapshot
func (e *Entity) Restore(s Snapshot) {
	e.entityType = s.entityType
	e.entityID = s.entityID
	e.attributes = copyAttributes(s.attributes)
	e.relationships = copyRelationships(s.relationships)
	e.included = s.included
	e.pool = s.pool

	if s.pool != nil {
		s.pool.members = append([]*Entity(nil), s.members...)
	}
}

func identityString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func copyAttributes(attributes map[string]any) map[string]any {
	c := make(map[string]any, len(attributes))
	for k, v := range attributes {
		c[k] = v
	}
	return c
}

func copyRelationships(relationships map[string]types.Relationship) map[string]types.Relationship {
	c := make(map[string]types.Relationship, len(relationships))
	for k, v := range relationships {
		c[k] = v
	}
	return c
}
