package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/entities"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
)

type Operation int

const (
	Create Operation = iota
	Update
	Patch
	Delete
	Read
)

// Method maps an operation to its HTTP verb
func (op Operation) Method() string {
	switch op {
	case Create:
		return http.MethodPost
	case Update:
		return http.MethodPut
	case Patch:
		return http.MethodPatch
	case Delete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

func (op Operation) String() string {
	switch op {
	case Create:
		return "create"
	case Update:
		return "update"
	case Patch:
		return "patch"
	case Delete:
		return "delete"
	case Read:
		return "read"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// OperationFor picks the operation of a save: entities without an id are
// created, full saves are updates and partial saves are patches
func OperationFor(e *entities.Entity, keys PersistedKeys) Operation {
	if e.IsNew() {
		return Create
	}

	if keys.All {
		return Update
	}

	return Patch
}

// Payload is the outgoing state of a save before encoding
type Payload struct {
	Resource types.ResourceObject
	Files    map[string]File
}

func (p Payload) HasFiles() bool {
	return len(p.Files) > 0
}

// PrepareSyncData builds the outgoing resource object holding identity and the
// selected attributes and relationships only
func PrepareSyncData(e *entities.Entity, keys PersistedKeys, files map[string]File) Payload {
	current := e.ResourceObject()

	resource := types.ResourceObject{
		Type: current.Type,
		ID:   current.ID,
	}

	attributes := map[string]any{}
	for _, name := range keys.Attributes {
		if name == "id" || name == "type" {
			continue
		}
		if value, ok := current.Attributes[name]; ok {
			attributes[name] = value
		}
	}

	if len(attributes) > 0 {
		resource.Attributes = attributes
	}

	relationships := map[string]types.Relationship{}
	for _, name := range keys.Relations {
		if rel, ok := current.Relationships[name]; ok {
			relationships[name] = types.NewRelationship(rel.Data)
		}
	}

	if len(relationships) > 0 {
		resource.Relationships = relationships
	}

	payload := Payload{Resource: resource}

	if len(files) > 0 {
		payload.Files = files
	}

	return payload
}

// Request is an encoded save, ready for the transport
type Request struct {
	Method      string
	ContentType string
	Body        []byte
}

// Encode serializes a payload. Payloads with files become multipart form data
// sent with POST, with the resource in a part named data and one part per file.
// Anything else is sent as a JSON:API document.
func Encode(op Operation, payload Payload) (Request, error) {
	if payload.HasFiles() {
		return encodeMultipart(payload)
	}

	body, err := json.Marshal(types.NewDocument(payload.Resource))
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal document: %w", err)
	}

	return Request{
		Method:      op.Method(),
		ContentType: types.MediaType,
		Body:        body,
	}, nil
}

func encodeMultipart(payload Payload) (Request, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	resource, err := json.Marshal(payload.Resource)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal resource: %w", err)
	}

	if err = w.WriteField("data", string(resource)); err != nil {
		return Request{}, fmt.Errorf("failed to write data part: %w", err)
	}

	fields := make([]string, 0, len(payload.Files))
	for field := range payload.Files {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		file := payload.Files[field]

		filename := file.Filename
		if filename == "" {
			filename = field
		}

		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return Request{}, fmt.Errorf("failed to create part %s: %w", field, err)
		}

		if _, err = part.Write(file.Content); err != nil {
			return Request{}, fmt.Errorf("failed to write part %s: %w", field, err)
		}
	}

	if err = w.Close(); err != nil {
		return Request{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return Request{
		Method:      http.MethodPost,
		ContentType: w.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
