package client

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/entities"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/errors"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/persistence"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Client interface {
	Retrieve(ctx context.Context, resourceName, resourceID string, parameters ...RequestDecoratorFunc) (*entities.Entity, error)
	RetrieveURL(ctx context.Context, resourceURL string) (*entities.Entity, error)
	Query(ctx context.Context, resourceName string, parameters ...RequestDecoratorFunc) (*entities.Set, error)
	QueryURL(ctx context.Context, resourceURL string) (*entities.Set, error)
	Fetch(ctx context.Context, set *entities.Set) error
	Refresh(ctx context.Context, e *entities.Entity) error

	Save(ctx context.Context, e *entities.Entity, spec persistence.SaveSpec) error
	SaveAttribute(ctx context.Context, e *entities.Entity, name string) error
	SetAndSaveAttribute(ctx context.Context, e *entities.Entity, name string, value any) error
	SaveRelation(ctx context.Context, e *entities.Entity, name string) error
	SetAndSaveRelation(ctx context.Context, e *entities.Entity, name string, data any) error
	SaveFile(ctx context.Context, e *entities.Entity, field string, file persistence.File) error
	SaveFiles(ctx context.Context, e *entities.Entity, files map[string]persistence.File, attributes ...string) error
	Delete(ctx context.Context, e *entities.Entity) error

	ResourceURL(resourceName, resourceID string) string
}

type RequestDecoratorFunc func([]string) []string

func Debug(enabled string) func(*jsonapiClient) {
	return func(c *jsonapiClient) {
		c.debug = (enabled == "true")
	}
}

// BasePath sets the path segment that prefixes every resource name
func BasePath(basePath string) func(*jsonapiClient) {
	return func(c *jsonapiClient) {
		c.basePath = strings.Trim(basePath, "/")
	}
}

func Header(name, value string) func(*jsonapiClient) {
	return func(c *jsonapiClient) {
		c.headers[name] = append(c.headers[name], value)
	}
}

func WithTransport(transport Transport) func(*jsonapiClient) {
	return func(c *jsonapiClient) {
		c.transport = transport
	}
}

const DefaultBasePath string = "api"

func New(baseURL string, options ...func(*jsonapiClient)) Client {
	c := &jsonapiClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		basePath: DefaultBasePath,
		headers:  map[string][]string{},
		debug:    false,
	}

	for _, option := range options {
		option(c)
	}

	if c.transport == nil {
		c.transport = newHTTPTransport(c.headers, c.debug)
	}

	return c
}

const (
	TraceAttributeResourceType string = "resource-type"
	TraceAttributeResourceID   string = "resource-id"
)

var tracer = otel.Tracer("jsonapi-resource/client")

type jsonapiClient struct {
	baseURL   string
	basePath  string
	headers   map[string][]string
	debug     bool
	transport Transport
}

// ResourceURL returns /{basePath}/{resourceName} for collections and
// /{basePath}/{resourceName}/{id} for single resources, prefixed by the base URL
func (c *jsonapiClient) ResourceURL(resourceName, resourceID string) string {
	u := c.baseURL
	if c.basePath != "" {
		u += "/" + c.basePath
	}

	u += "/" + url.PathEscape(resourceName)

	if resourceID != "" {
		u += "/" + url.PathEscape(resourceID)
	}

	return u
}

func (c *jsonapiClient) entityURL(e *entities.Entity) string {
	if e.URL() != "" {
		return e.URL()
	}

	return c.ResourceURL(e.Type(), e.ID())
}

func (c *jsonapiClient) Retrieve(ctx context.Context, resourceName, resourceID string, parameters ...RequestDecoratorFunc) (*entities.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-entity",
		trace.WithAttributes(attribute.String(TraceAttributeResourceType, resourceName)),
		trace.WithAttributes(attribute.String(TraceAttributeResourceID, resourceID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	e, err := c.retrieve(ctx, c.ResourceURL(resourceName, resourceID)+queryString(parameters))
	return e, err
}

func (c *jsonapiClient) RetrieveURL(ctx context.Context, resourceURL string) (*entities.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-entity")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	e, err := c.retrieve(ctx, resourceURL)
	return e, err
}

func (c *jsonapiClient) retrieve(ctx context.Context, resourceURL string) (*entities.Entity, error) {
	body, err := c.transport.FetchJSON(ctx, resourceURL)
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	return entities.NewFromDocument(doc), nil
}

func (c *jsonapiClient) Query(ctx context.Context, resourceName string, parameters ...RequestDecoratorFunc) (*entities.Set, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-entities",
		trace.WithAttributes(attribute.String(TraceAttributeResourceType, resourceName)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	set, err := c.query(ctx, c.ResourceURL(resourceName, "")+queryString(parameters))
	return set, err
}

func (c *jsonapiClient) QueryURL(ctx context.Context, resourceURL string) (*entities.Set, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-entities")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	set, err := c.query(ctx, resourceURL)
	return set, err
}

func (c *jsonapiClient) query(ctx context.Context, resourceURL string) (*entities.Set, error) {
	body, err := c.transport.FetchJSON(ctx, resourceURL)
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	set := entities.NewSetFromDocument(doc)
	set.SetURL(resourceURL)

	logging.GetFromContext(ctx).Debug("fetched entity set", "url", resourceURL, "count", set.Len())

	return set, nil
}

// Fetch reads a set again from the URL it was fetched from and replaces its members
func (c *jsonapiClient) Fetch(ctx context.Context, set *entities.Set) error {
	var err error

	ctx, span := tracer.Start(ctx, "fetch-entities")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if set.URL() == "" {
		err = fmt.Errorf("entity set has no url to fetch from (%w)", errors.ErrBadRequest)
		return err
	}

	fetched, err := c.query(ctx, set.URL())
	if err != nil {
		return err
	}

	set.Replace(fetched)

	return nil
}

// Refresh reads an entity again and replaces its state with the response
func (c *jsonapiClient) Refresh(ctx context.Context, e *entities.Entity) error {
	var err error

	ctx, span := tracer.Start(ctx, "refresh-entity", entitySpanAttributes(e))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if e.IsNew() {
		err = fmt.Errorf("cannot read an entity without id (%w)", errors.ErrBadRequest)
		return err
	}

	body, err := c.transport.FetchJSON(ctx, c.entityURL(e))
	if err != nil {
		return err
	}

	err = c.apply(e, body)
	return err
}

// Save sends the part of the entity selected by the SaveSpec. Entities without id
// are created. On success the response document replaces the entity's state,
// on failure the entity is left as it was before the request.
func (c *jsonapiClient) Save(ctx context.Context, e *entities.Entity, spec persistence.SaveSpec) error {
	var err error

	ctx, span := tracer.Start(ctx, "save-entity", entitySpanAttributes(e))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	snapshot := e.Snapshot()
	defer func() {
		if err != nil {
			e.Restore(snapshot)
		}
	}()

	keys, err := persistence.PreparePersistedKeys(e, spec)
	if err != nil {
		return err
	}

	op := persistence.OperationFor(e, keys)

	req, err := persistence.Encode(op, persistence.PrepareSyncData(e, keys, spec.Files))
	if err != nil {
		return err
	}

	endpoint := spec.URL
	if endpoint == "" {
		endpoint = c.entityURL(e)
	}

	logging.GetFromContext(ctx).Debug("saving entity", "operation", op.String(), "method", req.Method, "url", endpoint)

	body, err := c.transport.SendRequest(ctx, req.Method, endpoint, bytes.NewReader(req.Body), req.ContentType)
	if err != nil {
		return err
	}

	if err = c.apply(e, body); err != nil {
		return err
	}

	if spec.AfterSave != nil {
		spec.AfterSave(e)
	}

	return nil
}

func (c *jsonapiClient) SaveAttribute(ctx context.Context, e *entities.Entity, name string) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.Attributes(name)))
}

func (c *jsonapiClient) SetAndSaveAttribute(ctx context.Context, e *entities.Entity, name string, value any) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.AttributeValue(name, value)))
}

func (c *jsonapiClient) SaveRelation(ctx context.Context, e *entities.Entity, name string) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.Relations(name)))
}

func (c *jsonapiClient) SetAndSaveRelation(ctx context.Context, e *entities.Entity, name string, data any) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.RelationValue(name, data)))
}

func (c *jsonapiClient) SaveFile(ctx context.Context, e *entities.Entity, field string, file persistence.File) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.WithFile(field, file)))
}

func (c *jsonapiClient) SaveFiles(ctx context.Context, e *entities.Entity, files map[string]persistence.File, attributes ...string) error {
	return c.Save(ctx, e, persistence.NewSaveSpec(persistence.Files(files), persistence.Attributes(attributes...)))
}

// Delete removes a persisted entity. Deleting a new entity is a no-op.
func (c *jsonapiClient) Delete(ctx context.Context, e *entities.Entity) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-entity", entitySpanAttributes(e))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if e.IsNew() {
		return nil
	}

	_, err = c.transport.SendRequest(ctx, persistence.Delete.Method(), c.entityURL(e), nil, "")

	return err
}

func (c *jsonapiClient) apply(e *entities.Entity, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	doc, err := parseDocument(body)
	if err != nil {
		return err
	}

	e.Apply(doc)

	return nil
}

func parseDocument(body []byte) (types.Document, error) {
	doc, err := types.ParseDocument(body)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to parse response document: %s (%w)", err.Error(), errors.ErrBadResponse)
	}
	return doc, nil
}

func entitySpanAttributes(e *entities.Entity) trace.SpanStartEventOption {
	return trace.WithAttributes(
		attribute.String(TraceAttributeResourceType, e.Type()),
		attribute.String(TraceAttributeResourceID, e.ID()),
	)
}

func queryString(parameters []RequestDecoratorFunc) string {
	params := make([]string, 0, len(parameters))
	for _, rdf := range parameters {
		params = rdf(params)
	}

	if len(params) == 0 {
		return ""
	}

	return "?" + strings.Join(params, "&")
}
