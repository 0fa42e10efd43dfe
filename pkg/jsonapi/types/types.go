package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MediaType is the content type of every JSON:API request and response body
const MediaType string = "application/vnd.api+json"

// ResourceRef identifies a resource independent of its materialization
type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func NewResourceRef(resourceType, resourceID string) ResourceRef {
	return ResourceRef{Type: resourceType, ID: resourceID}
}

// Key returns the pool key for the reference, i.e. type@id
func (r ResourceRef) Key() string {
	return r.Type + "@" + r.ID
}

type relationshipKind int

const (
	absentData relationshipKind = iota
	nullData
	toOneData
	toManyData
)

// RelationshipData is the tagged content of a relationship's "data" member
type RelationshipData struct {
	kind relationshipKind
	refs []ResourceRef
}

// NoData returns relationship data for a relationship that carries no "data" member
func NoData() RelationshipData {
	return RelationshipData{kind: absentData}
}

// NullData returns an empty to-one relationship, serialized as "data": null
func NullData() RelationshipData {
	return RelationshipData{kind: nullData}
}

func ToOne(ref ResourceRef) RelationshipData {
	return RelationshipData{kind: toOneData, refs: []ResourceRef{ref}}
}

func ToMany(refs ...ResourceRef) RelationshipData {
	d := RelationshipData{kind: toManyData, refs: make([]ResourceRef, 0, len(refs))}
	d.refs = append(d.refs, refs...)
	return d
}

// HasData reports whether the relationship points at something, an empty to-many included
func (d RelationshipData) HasData() bool {
	return d.kind == toOneData || d.kind == toManyData
}

func (d RelationshipData) IsPresent() bool {
	return d.kind != absentData
}

func (d RelationshipData) IsToMany() bool {
	return d.kind == toManyData
}

func (d RelationshipData) IsToOne() bool {
	return d.kind == toOneData || d.kind == nullData
}

// Ref returns the reference of a to-one relationship
func (d RelationshipData) Ref() (ResourceRef, bool) {
	if d.kind != toOneData {
		return ResourceRef{}, false
	}
	return d.refs[0], true
}

// Refs returns a copy of all references, a to-one relationship yields at most one
func (d RelationshipData) Refs() []ResourceRef {
	refs := make([]ResourceRef, len(d.refs))
	copy(refs, d.refs)
	return refs
}

func (d RelationshipData) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case toOneData:
		return json.Marshal(d.refs[0])
	case toManyData:
		return json.Marshal(d.refs)
	default:
		return []byte("null"), nil
	}
}

func (d *RelationshipData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = NullData()
		return nil
	}

	if data[0] == '[' {
		refs := []ResourceRef{}
		if err := json.Unmarshal(data, &refs); err != nil {
			return fmt.Errorf("failed to unmarshal to-many relationship data: %w", err)
		}
		*d = ToMany(refs...)
		return nil
	}

	ref := ResourceRef{}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("failed to unmarshal to-one relationship data: %w", err)
	}
	*d = ToOne(ref)

	return nil
}

// Relationship is a named relationship object of a resource
type Relationship struct {
	Data  RelationshipData
	Links map[string]any
	Meta  map[string]any
}

func NewRelationship(data RelationshipData) Relationship {
	return Relationship{Data: data}
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	contents := map[string]any{}

	if r.Data.IsPresent() {
		contents["data"] = r.Data
	}

	if len(r.Links) > 0 {
		contents["links"] = r.Links
	}

	if len(r.Meta) > 0 {
		contents["meta"] = r.Meta
	}

	return json.Marshal(contents)
}

// UnmarshalJSON is lenient: malformed members are left out rather than
// failing the enclosing resource.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	*r = Relationship{Data: NoData()}

	var contents map[string]json.RawMessage
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil
	}

	if raw, ok := contents["data"]; ok {
		if err := r.Data.UnmarshalJSON(raw); err != nil {
			r.Data = NoData()
		}
	}

	if raw, ok := contents["links"]; ok {
		links := map[string]any{}
		if err := json.Unmarshal(raw, &links); err == nil {
			r.Links = links
		}
	}

	if raw, ok := contents["meta"]; ok {
		meta := map[string]any{}
		if err := json.Unmarshal(raw, &meta); err == nil {
			r.Meta = meta
		}
	}

	return nil
}

// ResourceObject is the wire representation of a single resource
type ResourceObject struct {
	Type          string                  `json:"type,omitempty"`
	ID            string                  `json:"id,omitempty"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         map[string]any          `json:"links,omitempty"`
	Meta          map[string]any          `json:"meta,omitempty"`
}

func (r ResourceObject) Ref() ResourceRef {
	return NewResourceRef(r.Type, r.ID)
}

func (r ResourceObject) IsEmpty() bool {
	return r.Type == "" && r.ID == "" && len(r.Attributes) == 0 && len(r.Relationships) == 0
}

// ErrorSource points at the part of a request document that caused an error
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is a member of a JSON:API "errors" array
type ErrorObject struct {
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status,omitempty"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail,omitempty"`
	Source *ErrorSource   `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Document is a top level JSON:API document with either a single resource
// or a collection of resources as primary data
type Document struct {
	data       []ResourceObject
	collection bool

	Included []ResourceObject
	Links    map[string]any
	Meta     map[string]any
	Errors   []ErrorObject
}

func NewDocument(data ResourceObject, included ...ResourceObject) Document {
	return Document{
		data:     []ResourceObject{data},
		Included: included,
	}
}

func NewCollectionDocument(data []ResourceObject, included ...ResourceObject) Document {
	return Document{
		data:       data,
		collection: true,
		Included:   included,
	}
}

// ParseDocument decodes a JSON:API document. A document without primary
// data decodes as a single, empty resource object.
func ParseDocument(body []byte) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d Document) IsCollection() bool {
	return d.collection
}

// Resource returns the primary resource of a single resource document
func (d Document) Resource() ResourceObject {
	if d.collection || len(d.data) == 0 {
		return ResourceObject{}
	}
	return d.data[0]
}

// Resources returns the primary data as a list, regardless of form
func (d Document) Resources() []ResourceObject {
	resources := make([]ResourceObject, len(d.data))
	copy(resources, d.data)
	return resources
}

func (d Document) MarshalJSON() ([]byte, error) {
	contents := map[string]any{}

	if d.collection {
		data := d.data
		if data == nil {
			data = []ResourceObject{}
		}
		contents["data"] = data
	} else if len(d.data) > 0 {
		contents["data"] = d.data[0]
	} else if len(d.Errors) == 0 {
		contents["data"] = nil
	}

	if len(d.Included) > 0 {
		contents["included"] = d.Included
	}

	if len(d.Links) > 0 {
		contents["links"] = d.Links
	}

	if len(d.Meta) > 0 {
		contents["meta"] = d.Meta
	}

	if len(d.Errors) > 0 {
		contents["errors"] = d.Errors
	}

	return json.Marshal(contents)
}

func (d *Document) UnmarshalJSON(body []byte) error {
	contents := struct {
		Data     json.RawMessage   `json:"data"`
		Included []json.RawMessage `json:"included"`
		Links    json.RawMessage   `json:"links"`
		Meta     json.RawMessage   `json:"meta"`
		Errors   json.RawMessage   `json:"errors"`
	}{}

	if err := json.Unmarshal(body, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}

	*d = Document{
		Included: decodeResources(contents.Included),
	}

	decodeLenient(contents.Links, &d.Links)
	decodeLenient(contents.Meta, &d.Meta)
	decodeLenient(contents.Errors, &d.Errors)

	raw := bytes.TrimSpace(contents.Data)

	if len(raw) > 0 && raw[0] == '[' {
		members := []json.RawMessage{}
		if err := json.Unmarshal(raw, &members); err == nil {
			d.data = decodeResources(members)
			d.collection = true
			return nil
		}
	}

	resource := ResourceObject{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &resource); err != nil {
			resource = ResourceObject{}
		}
	}

	d.data = []ResourceObject{resource}

	return nil
}

// decodeResources skips members that are not valid resource objects
func decodeResources(members []json.RawMessage) []ResourceObject {
	if members == nil {
		return nil
	}

	resources := make([]ResourceObject, 0, len(members))

	for _, raw := range members {
		resource := ResourceObject{}
		if err := json.Unmarshal(raw, &resource); err != nil {
			continue
		}
		resources = append(resources, resource)
	}

	return resources
}

func decodeLenient[T any](raw json.RawMessage, target *T) {
	if len(raw) == 0 {
		return
	}

	var value T
	if err := json.Unmarshal(raw, &value); err == nil {
		*target = value
	}
}
