package fakeserver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/errors"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) queryResources(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")
	s.record(Request{Method: r.Method, Path: r.URL.Path})

	s.mu.Lock()
	defer s.mu.Unlock()

	all, ok := s.resources[resourceType]
	if !ok {
		errors.ReportNotFound(w, fmt.Sprintf("no resources of type %s", resourceType))
		return
	}

	query := r.URL.Query()

	matching := make([]types.ResourceObject, 0, len(all))
	for _, resource := range all {
		if matchesFilters(resource, query) {
			matching = append(matching, resource)
		}
	}

	offset, err := intParam(query, "page[offset]", 0)
	if err != nil {
		errors.ReportBadRequest(w, err.Error())
		return
	}

	limit, err := intParam(query, "page[limit]", len(matching))
	if err != nil {
		errors.ReportBadRequest(w, err.Error())
		return
	}

	from := min(offset, len(matching))
	to := min(from+limit, len(matching))
	page := matching[from:to]

	doc := types.NewCollectionDocument(page, s.related(page, includeParam(query))...)
	doc.Meta = map[string]any{"total": len(matching)}

	logging.GetFromContext(r.Context()).Debug("returning collection", "type", resourceType, "count", len(page))

	writeDocument(w, http.StatusOK, doc)
}

func (s *Server) retrieveResource(w http.ResponseWriter, r *http.Request) {
	resourceType, resourceID := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	s.record(Request{Method: r.Method, Path: r.URL.Path})

	s.mu.Lock()
	defer s.mu.Unlock()

	resource, _, ok := s.find(resourceType, resourceID)
	if !ok {
		errors.ReportNotFound(w, fmt.Sprintf("no %s with id %s", resourceType, resourceID))
		return
	}

	s.writeResource(w, http.StatusOK, resource, includeParam(r.URL.Query()))
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")

	resource, ok := s.readResource(w, r)
	if !ok {
		return
	}

	if resource.Type != resourceType {
		errors.ReportConflict(w, fmt.Sprintf("resource type %s does not match endpoint %s", resource.Type, resourceType))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if resource.ID == "" {
		resource.ID = uuid.New().String()
	}

	if _, _, exists := s.find(resource.Type, resource.ID); exists {
		errors.ReportConflict(w, fmt.Sprintf("%s with id %s already exists", resource.Type, resource.ID))
		return
	}

	s.resources[resourceType] = append(s.resources[resourceType], resource)

	logging.GetFromContext(r.Context()).Info("resource created", "type", resource.Type, "id", resource.ID)

	w.Header().Add("Location", "/api/"+resource.Type+"/"+resource.ID)
	s.writeResource(w, http.StatusCreated, resource, nil)
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	s.storeResource(w, r, mergeResource)
}

func (s *Server) replaceResource(w http.ResponseWriter, r *http.Request) {
	s.storeResource(w, r, func(_, incoming types.ResourceObject) types.ResourceObject {
		return incoming
	})
}

func (s *Server) storeResource(w http.ResponseWriter, r *http.Request, combine func(current, incoming types.ResourceObject) types.ResourceObject) {
	resourceType, resourceID := chi.URLParam(r, "type"), chi.URLParam(r, "id")

	incoming, ok := s.readResource(w, r)
	if !ok {
		return
	}

	if incoming.Type != resourceType || incoming.ID != resourceID {
		errors.ReportConflict(w, fmt.Sprintf("resource %s does not match endpoint %s/%s", incoming.Ref().Key(), resourceType, resourceID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, idx, found := s.find(resourceType, resourceID)
	if !found {
		errors.ReportNotFound(w, fmt.Sprintf("no %s with id %s", resourceType, resourceID))
		return
	}

	updated := combine(current, incoming)
	s.resources[resourceType][idx] = updated

	logging.GetFromContext(r.Context()).Info("resource updated", "type", resourceType, "id", resourceID)

	s.writeResource(w, http.StatusOK, updated, nil)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	resourceType, resourceID := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	s.record(Request{Method: r.Method, Path: r.URL.Path})

	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, found := s.find(resourceType, resourceID)
	if !found {
		errors.ReportNotFound(w, fmt.Sprintf("no %s with id %s", resourceType, resourceID))
		return
	}

	s.resources[resourceType] = append(s.resources[resourceType][:idx], s.resources[resourceType][idx+1:]...)

	w.WriteHeader(http.StatusNoContent)
}

// readResource decodes the resource object of a JSON:API document or of the
// data part of a multipart request, and records the request
func (s *Server) readResource(w http.ResponseWriter, r *http.Request) (types.ResourceObject, bool) {
	contentType := r.Header.Get("Content-Type")
	req := Request{Method: r.Method, Path: r.URL.Path, ContentType: contentType}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		s.record(req)
		errors.ReportBadRequest(w, "missing or invalid content type")
		return types.ResourceObject{}, false
	}

	if mediaType == "multipart/form-data" {
		req.Fields, req.Files, err = readMultipart(r.Body, params["boundary"])
		s.record(req)

		if err != nil {
			errors.ReportBadRequest(w, err.Error())
			return types.ResourceObject{}, false
		}

		body := []byte(`{"data":` + req.Fields["data"] + `}`)
		if err = validateRequestDocument(body); err != nil {
			errors.ReportBadRequest(w, err.Error())
			return types.ResourceObject{}, false
		}

		resource := types.ResourceObject{}
		if err = json.Unmarshal([]byte(req.Fields["data"]), &resource); err != nil {
			errors.ReportBadRequest(w, "invalid data part: "+err.Error())
			return types.ResourceObject{}, false
		}

		return resource, true
	}

	req.Body, err = io.ReadAll(r.Body)
	s.record(req)

	if err != nil {
		errors.ReportBadRequest(w, "failed to read request body")
		return types.ResourceObject{}, false
	}

	if err = validateRequestDocument(req.Body); err != nil {
		errors.ReportBadRequest(w, err.Error())
		return types.ResourceObject{}, false
	}

	doc, err := types.ParseDocument(req.Body)
	if err != nil || doc.IsCollection() || doc.Resource().Type == "" {
		errors.ReportBadRequest(w, "request body is not a single resource document")
		return types.ResourceObject{}, false
	}

	return doc.Resource(), true
}

func readMultipart(body io.Reader, boundary string) (map[string]string, map[string]File, error) {
	fields := map[string]string{}
	files := map[string]File{}

	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read multipart body: %w", err)
		}

		content, err := io.ReadAll(part)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read part %s: %w", part.FormName(), err)
		}

		if part.FileName() == "" {
			fields[part.FormName()] = string(content)
			continue
		}

		files[part.FormName()] = File{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Content:     content,
		}
	}

	return fields, files, nil
}

func (s *Server) writeResource(w http.ResponseWriter, status int, resource types.ResourceObject, include []string) {
	included := s.related([]types.ResourceObject{resource}, include)
	writeDocument(w, status, types.NewDocument(resource, included...))
}

func writeDocument(w http.ResponseWriter, status int, doc types.Document) {
	b, err := json.Marshal(doc)
	if err != nil {
		errors.WriteResponse(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	w.Header().Add("Content-Type", types.MediaType)
	w.WriteHeader(status)
	w.Write(b)
}

func mergeResource(current, incoming types.ResourceObject) types.ResourceObject {
	merged := types.ResourceObject{
		Type:          current.Type,
		ID:            current.ID,
		Attributes:    map[string]any{},
		Relationships: map[string]types.Relationship{},
		Links:         current.Links,
		Meta:          current.Meta,
	}

	for k, v := range current.Attributes {
		merged.Attributes[k] = v
	}
	for k, v := range incoming.Attributes {
		merged.Attributes[k] = v
	}

	for k, v := range current.Relationships {
		merged.Relationships[k] = v
	}
	for k, v := range incoming.Relationships {
		merged.Relationships[k] = v
	}

	return merged
}

func matchesFilters(resource types.ResourceObject, query map[string][]string) bool {
	for key, values := range query {
		name, ok := strings.CutPrefix(key, "filter[")
		if !ok || !strings.HasSuffix(name, "]") || len(values) == 0 {
			continue
		}
		name = strings.TrimSuffix(name, "]")

		var actual string
		if name == "id" {
			actual = resource.ID
		} else if value, found := resource.Attributes[name]; found {
			actual = fmt.Sprint(value)
		} else {
			return false
		}

		if actual != values[0] {
			return false
		}
	}

	return true
}

func includeParam(query map[string][]string) []string {
	values, ok := query["include"]
	if !ok || len(values) == 0 {
		return nil
	}

	names := []string{}
	for _, name := range strings.Split(values[0], ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	return names
}

func intParam(query map[string][]string, name string, defaultValue int) (int, error) {
	values, ok := query[name]
	if !ok || len(values) == 0 {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(values[0])
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid value for %s: %s", name, values[0])
	}

	return value, nil
}
