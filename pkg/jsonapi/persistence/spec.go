package persistence

import (
	"sort"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/entities"
)

// File is a file payload sent alongside an entity in a multipart request
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SaveSpec describes which parts of an entity a save sends, and which values
// to assign before doing so
type SaveSpec struct {
	// All sends every attribute and relationship of the entity
	All bool

	AttributeNames  []string
	AttributeValues map[string]any

	RelationNames  []string
	RelationValues map[string]any

	Files map[string]File

	// URL overrides the resource URL of the entity for this save
	URL string

	AfterSave func(e *entities.Entity)
}

type SaveOption func(*SaveSpec)

func NewSaveSpec(options ...SaveOption) SaveSpec {
	spec := SaveSpec{
		AttributeValues: map[string]any{},
		RelationValues:  map[string]any{},
		Files:           map[string]File{},
	}

	for _, option := range options {
		option(&spec)
	}

	return spec
}

func Everything() SaveOption {
	return func(s *SaveSpec) { s.All = true }
}

func Attributes(names ...string) SaveOption {
	return func(s *SaveSpec) { s.AttributeNames = append(s.AttributeNames, names...) }
}

func AttributeValue(name string, value any) SaveOption {
	return func(s *SaveSpec) { s.AttributeValues[name] = value }
}

func AttributeValues(values map[string]any) SaveOption {
	return func(s *SaveSpec) {
		for k, v := range values {
			s.AttributeValues[k] = v
		}
	}
}

func Relations(names ...string) SaveOption {
	return func(s *SaveSpec) { s.RelationNames = append(s.RelationNames, names...) }
}

func RelationValue(name string, data any) SaveOption {
	return func(s *SaveSpec) { s.RelationValues[name] = data }
}

func RelationValues(values map[string]any) SaveOption {
	return func(s *SaveSpec) {
		for k, v := range values {
			s.RelationValues[k] = v
		}
	}
}

func WithFile(field string, file File) SaveOption {
	return func(s *SaveSpec) { s.Files[field] = file }
}

func Files(files map[string]File) SaveOption {
	return func(s *SaveSpec) {
		for k, v := range files {
			s.Files[k] = v
		}
	}
}

func ToURL(url string) SaveOption {
	return func(s *SaveSpec) { s.URL = url }
}

func AfterSave(callback func(e *entities.Entity)) SaveOption {
	return func(s *SaveSpec) { s.AfterSave = callback }
}

// PersistedKeys is the subset of an entity that a save sends
type PersistedKeys struct {
	All        bool
	Attributes []string
	Relations  []string
}

// PreparePersistedKeys assigns the values carried by a SaveSpec to the entity
// and returns the names of the attributes and relationships to send. A spec
// that names nothing yields an empty subset.
func PreparePersistedKeys(e *entities.Entity, spec SaveSpec) (PersistedKeys, error) {
	if len(spec.RelationValues) > 0 {
		if err := e.SetRelations(spec.RelationValues); err != nil {
			return PersistedKeys{}, err
		}
	}

	if len(spec.AttributeValues) > 0 {
		e.SetAttributes(spec.AttributeValues)
	}

	keys := PersistedKeys{
		All:        spec.All,
		Attributes: mergeNames(spec.AttributeNames, spec.AttributeValues),
		Relations:  mergeNames(spec.RelationNames, spec.RelationValues),
	}

	if keys.All {
		keys.Attributes = e.AttributeNames()
		keys.Relations = e.RelationshipNames()
	}

	return keys, nil
}

func mergeNames(names []string, values map[string]any) []string {
	merged := make([]string, 0, len(names)+len(values))
	seen := map[string]bool{}

	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			merged = append(merged, name)
		}
	}

	fromValues := make([]string, 0, len(values))
	for name := range values {
		if !seen[name] {
			seen[name] = true
			fromValues = append(fromValues, name)
		}
	}
	sort.Strings(fromValues)

	return append(merged, fromValues...)
}
