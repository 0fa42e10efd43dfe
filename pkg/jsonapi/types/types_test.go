package types

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func TestParseSingleResourceDocument(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(articleJSON))
	is.NoErr(err)

	is.True(!doc.IsCollection())

	article := doc.Resource()
	is.Equal(article.Type, "article")
	is.Equal(article.ID, "1")
	is.Equal(article.Attributes["title"], "T")

	author, ok := article.Relationships["author"].Data.Ref()
	is.True(ok) // author should be a to-one relationship
	is.Equal(author, NewResourceRef("person", "1"))

	tags := article.Relationships["tags"].Data
	is.True(tags.IsToMany())
	is.Equal(len(tags.Refs()), 2)
	is.Equal(tags.Refs()[1].ID, "2")

	publisher := article.Relationships["publisher"].Data
	is.True(publisher.IsPresent()) // explicit null is present ...
	is.True(!publisher.HasData())  // ... but carries no data

	links := article.Relationships["comments"].Data
	is.True(!links.IsPresent()) // links only relationship has no data member

	is.Equal(len(doc.Included), 1)
}

func TestParseCollectionDocument(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{"data":[{"type":"tag","id":"1"},{"type":"tag","id":"2"}]}`))
	is.NoErr(err)

	is.True(doc.IsCollection())
	is.Equal(len(doc.Resources()), 2)
	is.Equal(doc.Resource().Type, "") // single resource accessor is empty for collections
}

func TestParseDocumentWithoutDataIsAnEmptyResource(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{"meta":{"count":0}}`))
	is.NoErr(err)

	is.True(!doc.IsCollection())
	is.True(doc.Resource().IsEmpty())
	is.Equal(doc.Meta["count"], float64(0))
}

func TestParseInvalidJSONFails(t *testing.T) {
	is := is.New(t)

	_, err := ParseDocument([]byte(`{"data":`))
	is.True(err != nil)
}

func TestParseSkipsMalformedIncludedMembers(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{
		"data": {"type": "article", "id": "1", "attributes": {"title": "T"}},
		"included": [
			{"type": "person", "id": "1", "attributes": "not an object"},
			{"type": "person", "id": "2", "attributes": {"email": "a@b.com"}},
			42
		]
	}`))
	is.NoErr(err)

	is.Equal(doc.Resource().Attributes["title"], "T")
	is.Equal(len(doc.Included), 1) // only the well formed member survives
	is.Equal(doc.Included[0].ID, "2")
}

func TestParseSkipsMalformedCollectionMembers(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{"data": [
		{"type": "tag", "id": "1"},
		{"type": "tag", "id": "2", "relationships": "broken", "attributes": []},
		{"type": "tag", "id": "3"}
	]}`))
	is.NoErr(err)

	is.True(doc.IsCollection())
	is.Equal(len(doc.Resources()), 2)
	is.Equal(doc.Resources()[1].ID, "3")
}

func TestParseMalformedRelationshipKeepsResource(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{"data": {
		"type": "article", "id": "1",
		"attributes": {"title": "T"},
		"relationships": {
			"author": {"data": 42, "links": "nope", "meta": {"count": 1}},
			"editor": "not an object",
			"tags": {"data": [{"type": "tag", "id": "1"}]}
		}
	}}`))
	is.NoErr(err)

	article := doc.Resource()
	is.Equal(article.ID, "1")
	is.Equal(article.Attributes["title"], "T")

	author := article.Relationships["author"]
	is.True(!author.Data.IsPresent()) // malformed data reads as absent
	is.Equal(author.Links, nil)
	is.Equal(author.Meta["count"], float64(1))

	is.True(!article.Relationships["editor"].Data.IsPresent())
	is.Equal(len(article.Relationships["tags"].Data.Refs()), 1)
}

func TestParseIgnoresMalformedTopLevelMembers(t *testing.T) {
	is := is.New(t)

	doc, err := ParseDocument([]byte(`{"data": {"type": "tag", "id": "1"}, "meta": 5, "links": [], "errors": {}}`))
	is.NoErr(err)

	is.Equal(doc.Resource().ID, "1")
	is.Equal(doc.Meta, nil)
	is.Equal(len(doc.Errors), 0)
}

func TestMarshalRelationships(t *testing.T) {
	is := is.New(t)

	resource := ResourceObject{
		Type: "article",
		ID:   "1",
		Relationships: map[string]Relationship{
			"author":    NewRelationship(ToOne(NewResourceRef("person", "1"))),
			"publisher": NewRelationship(NullData()),
			"tags":      NewRelationship(ToMany()),
		},
	}

	b, err := json.Marshal(resource)
	is.NoErr(err)
	is.Equal(string(b), `{"type":"article","id":"1","relationships":{"author":{"data":{"type":"person","id":"1"}},"publisher":{"data":null},"tags":{"data":[]}}}`)
}

func TestMarshalDocument(t *testing.T) {
	is := is.New(t)

	doc := NewDocument(ResourceObject{Type: "tag", Attributes: map[string]any{"title": "New tag"}})

	b, err := json.Marshal(doc)
	is.NoErr(err)
	is.Equal(string(b), `{"data":{"type":"tag","attributes":{"title":"New tag"}}}`)

	b, err = json.Marshal(NewCollectionDocument(nil))
	is.NoErr(err)
	is.Equal(string(b), `{"data":[]}`)
}

const articleJSON string = `{
	"data": {
		"type": "article",
		"id": "1",
		"attributes": {"title": "T"},
		"relationships": {
			"author": {"data": {"type": "person", "id": "1"}},
			"tags": {"data": [{"type": "tag", "id": "1"}, {"type": "tag", "id": "2"}]},
			"publisher": {"data": null},
			"comments": {"links": {"related": "/api/article/1/comments"}}
		}
	},
	"included": [
		{"type": "person", "id": "1", "attributes": {"email": "a@b.com"}}
	]
}`
