package entities

import (
	"errors"
	"testing"

	jsonapierrors "github.com/diwise/jsonapi-resource/pkg/jsonapi/errors"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"

	"github.com/matryer/is"
)

func TestEntityFromDocument(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(authoredArticleJSON))
	is.NoErr(err)

	is.Equal(e.Type(), "article")
	is.Equal(e.ID(), "1")
	is.Equal(e.Get("id"), "1")
	is.Equal(e.Get("title"), "T")
	is.Equal(e.Get("author.email"), "a@b.com")
	is.True(!e.IsNew())
}

func TestRelatedEntityIdentityIsStable(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	author, ok := e.Get("author").(*Entity)
	is.True(ok) // author should resolve to an entity
	is.True(author == e.Get("author"))
	is.True(author == e.GetRelation("author"))

	tags := e.Get("tags").(*Set)
	is.True(tags.At(0) == e.Get("tags").(*Set).At(0))
}

func TestToManyProjection(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	tags, ok := e.Get("tags").(*Set)
	is.True(ok)
	is.Equal(tags.Len(), 3)

	expected := []any{}
	for _, tag := range tags.Members() {
		expected = append(expected, tag.Get("title"))
	}

	is.Equal(e.Get("tags.title"), expected)
	is.Equal(e.Get("tags.id"), []any{"1", "2", "3"})
	is.Equal(tags.Pluck("id"), []any{"1", "2", "3"})
}

func TestProjectionAcrossTwoHops(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	is.Equal(e.Get("tags.creator.email"), []any{"a@b.com", nil, nil})
}

func TestAbsentPathsYieldNil(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	is.Equal(e.Get("publisher"), nil)
	is.Equal(e.Get("publisher.email"), nil)
	is.Equal(e.Get("comments"), nil)
	is.Equal(e.Get("undefinedRelation.title"), nil)
	is.Equal(e.Get("undefinedAttribute"), nil)
	is.Equal(e.Get("missing.sub"), nil)
	is.Equal(e.GetRelation("undefinedRelation"), nil)

	is.True(e.pool == nil) // nothing above should have built the pool
}

func TestRelationReferencesDoNotMaterialize(t *testing.T) {
	is := is.New(t)

	set := articleSet(t)
	e := set.At(0)

	is.Equal(e.GetRelationReferences("author"), []string{"1"})
	is.Equal(e.GetRelationReferences("tags"), []string{"1", "2", "3"})
	is.Equal(e.GetRelationReferences("publisher"), nil)
	is.Equal(e.GetRelationReferences("undefinedRelation"), nil)

	for _, m := range set.Members() {
		is.True(m.pool == nil) // no member should have a pool
	}
}

func TestEmptyToManyHasNoReferences(t *testing.T) {
	is := is.New(t)

	e := New("article", ID("2"), R("tags", types.ToMany()))

	is.Equal(e.GetRelationReferences("tags"), nil)
	is.Equal(e.Get("tags").(*Set).Len(), 0)
}

func TestUnsetIDMakesEntityNew(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	e.Unset("id")

	is.True(e.IsNew())
	is.Equal(e.Get("id"), nil)
	is.Equal(e.ResourceObject().ID, "")
}

func TestSetIdentityThroughAttributes(t *testing.T) {
	is := is.New(t)

	e := New("", A("title", "New tag")).Set("type", "tag").Set("id", 7)

	is.Equal(e.Type(), "tag")
	is.Equal(e.ID(), "7")
	is.Equal(e.AttributeNames(), []string{"title"})
}

func TestUnresolvedMembersAreSkipped(t *testing.T) {
	is := is.New(t)

	e := New("article", ID("1"),
		R("tags", types.ToMany(types.NewResourceRef("tag", "1"), types.NewResourceRef("tag", "404"))),
	)
	e.included = []types.ResourceObject{{Type: "tag", ID: "1"}}

	is.Equal(e.Get("tags").(*Set).Len(), 1)
	is.Equal(e.MissingReferences("tags"), []types.ResourceRef{types.NewResourceRef("tag", "404")})
}

func TestSetMembersResolveSiblingsAndIncludes(t *testing.T) {
	is := is.New(t)
	set := articleSet(t)

	first := set.At(0)
	second := set.At(1)

	is.Equal(first.Get("author.email"), "a@b.com")
	is.Equal(second.Get("author.email"), "c@d.com")

	// the sibling referenced by a relationship is the set member itself
	is.True(second.Get("related") == first)

	// the pool built for the first member is propagated to its siblings
	is.True(first.pool != nil)
	is.True(second.pool != nil)
	is.True(first.pool != second.pool)
	is.Equal(first.pool.Len(), second.pool.Len())
	is.True(first.Get("author") == second.pool.Retrieve("person", "1"))
}

func TestSetRelationWithEntity(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	author := e.Get("author").(*Entity)

	err := e.SetRelation("publisher", author)
	is.NoErr(err)

	is.Equal(e.Get("publisher.id"), "1")
	is.True(e.Get("publisher") == author)
	is.Equal(e.Get("publisher.email"), "a@b.com")
}

func TestSetRelationWithSet(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	tags := e.Get("tags").(*Set)

	err := e.SetRelation("tags", tags.Slice(0, 2))
	is.NoErr(err)

	is.Equal(e.Get("tags").(*Set).Len(), 2)
	is.Equal(e.GetRelationReferences("tags"), []string{"1", "2"})
}

func TestSetRelationWithNewEntity(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	person := New("person", ID("99"), A("email", "new@b.com"))

	is.NoErr(e.SetRelations(map[string]any{
		"author":    person,
		"publisher": types.NewResourceRef("person", "2"),
	}))

	is.Equal(e.Get("author.email"), "new@b.com")
	is.Equal(e.Get("publisher.email"), "c@d.com") // a reference never replaces a materialized entity
}

func TestSetRelationWithBareIDs(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	is.NoErr(e.SetRelation("tags", []string{"3", "1"}))
	is.Equal(e.Get("tags.title"), []any{"Tag 3", "Tag 1"})

	is.NoErr(e.SetRelation("author", "2"))
	is.Equal(e.Get("author.email"), "c@d.com")
}

func TestSetRelationWithUnknownTypeFails(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	err := e.SetRelations(map[string]any{
		"author":    "2",
		"publisher": "2",
	})

	is.True(errors.Is(err, jsonapierrors.ErrUnsupportedRelation))
	is.Equal(e.GetRelationReferences("author"), []string{"1"}) // nothing should have been assigned

	err = e.SetRelation("author", 42)
	is.True(errors.Is(err, jsonapierrors.ErrUnsupportedRelation))
}

func TestSetRelationToNil(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	is.NoErr(e.SetRelation("author", nil))

	rel, ok := e.Relationship("author")
	is.True(ok)
	is.True(rel.Data.IsPresent())
	is.Equal(e.Get("author"), nil)
}

func TestRestoreUndoesAssignments(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	author := e.Get("author").(*Entity)
	snapshot := e.Snapshot()

	person := New("person", ID("99"), A("email", "new@b.com"))
	is.NoErr(e.SetRelations(map[string]any{"author": person}))
	e.Set("title", "Changed").Set("id", "2")

	is.Equal(e.Get("author.email"), "new@b.com")

	e.Restore(snapshot)

	is.Equal(e.ID(), "1")
	is.Equal(e.Get("title"), "T")
	is.True(e.Get("author") == author)
	is.True(!e.pool.Contains(person.Ref())) // the assigned entity left the pool
}

func TestRestoreBeforePoolWasBuilt(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(authoredArticleJSON))
	is.NoErr(err)

	snapshot := e.Snapshot()

	is.NoErr(e.SetRelation("author", New("person", ID("99"))))
	e.Restore(snapshot)

	is.True(e.pool == nil)
	is.Equal(e.Get("author.email"), "a@b.com")
}

func TestApplyReplacesStateAndPool(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	e.Set("localOnly", true)
	oldAuthor := e.Get("author").(*Entity)

	doc, err := types.ParseDocument([]byte(`{
		"data": {
			"type": "article", "id": "1",
			"attributes": {"title": "From server"},
			"relationships": {"author": {"data": {"type": "person", "id": "1"}}}
		},
		"included": [{"type": "person", "id": "1", "attributes": {"email": "changed@b.com"}}]
	}`))
	is.NoErr(err)

	e.Apply(doc)

	is.Equal(e.Get("title"), "From server")
	is.Equal(e.Get("localOnly"), nil)
	is.Equal(e.Get("tags"), nil)

	newAuthor := e.Get("author").(*Entity)
	is.True(newAuthor != oldAuthor)
	is.Equal(newAuthor.Get("email"), "changed@b.com")
}

func TestApplyMalformedDocumentKeepsIdentity(t *testing.T) {
	is := is.New(t)
	e := articleEntity(t)

	doc, err := types.ParseDocument([]byte(`{}`))
	is.NoErr(err)

	e.Apply(doc)

	is.Equal(e.ID(), "1")
	is.Equal(e.Type(), "article")
	is.Equal(e.Get("title"), nil)
}

func TestCollectionFromSingleEmptyDocument(t *testing.T) {
	is := is.New(t)

	set, err := NewSetFromJSON([]byte(`{"meta":{"total":0}}`))
	is.NoErr(err)

	is.Equal(set.Len(), 0)
	is.Equal(set.Meta()["total"], float64(0))
}

func TestSetHelpers(t *testing.T) {
	is := is.New(t)
	set := articleSet(t)

	is.Equal(set.Len(), 2)
	is.True(set.At(5) == nil)
	is.True(set.Find("article", "2") == set.At(1))
	is.Equal(set.Slice(1, 10).Len(), 1)
	is.Equal(set.Slice(3, 1).Len(), 0)
	is.Equal(set.Refs(), []types.ResourceRef{types.NewResourceRef("article", "1"), types.NewResourceRef("article", "2")})
}

func articleEntity(t *testing.T) *Entity {
	e, err := NewFromJSON([]byte(articleJSON))
	if err != nil {
		t.Fatalf("failed to parse article: %s", err.Error())
	}
	return e
}

func articleSet(t *testing.T) *Set {
	s, err := NewSetFromJSON([]byte(articlesJSON))
	if err != nil {
		t.Fatalf("failed to parse articles: %s", err.Error())
	}
	return s
}

const authoredArticleJSON string = `{"data":{"type":"article","id":"1","attributes":{"title":"T"},"relationships":{"author":{"data":{"type":"person","id":"1"}}}},"included":[{"type":"person","id":"1","attributes":{"email":"a@b.com"}}]}`

const articleJSON string = `{
	"data": {
		"type": "article",
		"id": "1",
		"attributes": {"title": "T", "leadTitle": "Lead"},
		"relationships": {
			"author": {"data": {"type": "person", "id": "1"}},
			"publisher": {"data": null},
			"comments": {"links": {"related": "/api/article/1/comments"}},
			"tags": {"data": [
				{"type": "tag", "id": "1"},
				{"type": "tag", "id": "2"},
				{"type": "tag", "id": "3"}
			]}
		}
	},
	"included": [
		{"type": "person", "id": "1", "attributes": {"email": "a@b.com"}},
		{"type": "person", "id": "2", "attributes": {"email": "c@d.com"}},
		{"type": "tag", "id": "1", "attributes": {"title": "Tag 1"}, "relationships": {"creator": {"data": {"type": "person", "id": "1"}}}},
		{"type": "tag", "id": "2", "attributes": {"title": "Tag 2"}},
		{"type": "tag", "id": "3", "attributes": {"title": "Tag 3"}}
	]
}`

const articlesJSON string = `{
	"data": [
		{
			"type": "article", "id": "1",
			"attributes": {"title": "Article 1"},
			"relationships": {
				"author": {"data": {"type": "person", "id": "1"}},
				"tags": {"data": [{"type": "tag", "id": "1"}, {"type": "tag", "id": "2"}, {"type": "tag", "id": "3"}]}
			}
		},
		{
			"type": "article", "id": "2",
			"attributes": {"title": "Article 2"},
			"relationships": {
				"author": {"data": {"type": "person", "id": "2"}},
				"related": {"data": {"type": "article", "id": "1"}}
			}
		}
	],
	"included": [
		{"type": "person", "id": "1", "attributes": {"email": "a@b.com"}},
		{"type": "person", "id": "2", "attributes": {"email": "c@d.com"}}
	]
}`
