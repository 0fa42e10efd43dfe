package fakeserver

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
	yaml "gopkg.in/yaml.v2"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

type fixtureRef struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
}

type fixtureRelationship struct {
	One  *fixtureRef  `yaml:"one"`
	Many []fixtureRef `yaml:"many"`
	Null bool         `yaml:"null"`
}

type fixtureResource struct {
	Type          string                         `yaml:"type"`
	ID            string                         `yaml:"id"`
	Attributes    map[string]any                 `yaml:"attributes"`
	Relationships map[string]fixtureRelationship `yaml:"relationships"`
}

type Fixtures struct {
	Resources []fixtureResource `yaml:"resources"`
}

func LoadFixtures(data io.Reader) (*Fixtures, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	f := &Fixtures{}
	err = yaml.Unmarshal(buf, f)

	return f, err
}

func (f *Fixtures) resourceObjects() ([]types.ResourceObject, error) {
	resources := make([]types.ResourceObject, 0, len(f.Resources))

	for _, fr := range f.Resources {
		if fr.Type == "" || fr.ID == "" {
			return nil, fmt.Errorf("fixture resources need both type and id")
		}

		resource := types.ResourceObject{
			Type: fr.Type,
			ID:   fr.ID,
		}

		if len(fr.Attributes) > 0 {
			resource.Attributes = normalize(fr.Attributes).(map[string]any)
		}

		if len(fr.Relationships) > 0 {
			resource.Relationships = map[string]types.Relationship{}

			for name, rel := range fr.Relationships {
				resource.Relationships[name] = types.NewRelationship(rel.data())
			}
		}

		resources = append(resources, resource)
	}

	return resources, nil
}

func (r fixtureRelationship) data() types.RelationshipData {
	switch {
	case r.One != nil:
		return types.ToOne(types.NewResourceRef(r.One.Type, r.One.ID))
	case r.Many != nil:
		refs := make([]types.ResourceRef, 0, len(r.Many))
		for _, ref := range r.Many {
			refs = append(refs, types.NewResourceRef(ref.Type, ref.ID))
		}
		return types.ToMany(refs...)
	case r.Null:
		return types.NullData()
	}

	return types.NoData()
}

// normalize converts the generic maps produced by yaml into maps that encoding/json can marshal
func normalize(value any) any {
	switch v := value.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for key, val := range v {
			m[fmt.Sprint(key)] = normalize(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, val := range v {
			m[key] = normalize(val)
		}
		return m
	case []any:
		s := make([]any, 0, len(v))
		for _, val := range v {
			s = append(s, normalize(val))
		}
		return s
	}

	return value
}
