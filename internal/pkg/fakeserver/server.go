package fakeserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"

	"github.com/diwise/jsonapi-resource/internal/pkg/infrastructure/router"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
)

// Server is an in-memory JSON:API server serving resources under /api/{type}
type Server struct {
	mu sync.Mutex

	resources map[string][]types.ResourceObject
	requests  []Request

	router *chi.Mux
	server *httptest.Server
}

// File is a file part received in a multipart request
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Request is a record of a request received by the server
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
	Fields      map[string]string
	Files       map[string]File
}

func New(ctx context.Context, fixtures io.Reader) (*Server, error) {
	f, err := LoadFixtures(fixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	resources, err := f.resourceObjects()
	if err != nil {
		return nil, err
	}

	s := &Server{
		resources: map[string][]types.ResourceObject{},
	}

	for _, r := range resources {
		s.resources[r.Type] = append(s.resources[r.Type], r)
	}

	s.router = router.New("jsonapi-fakeserver", logging.GetFromContext(ctx))
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/{type}", func(r chi.Router) {
			r.Get("/", s.queryResources)
			r.Post("/", s.createResource)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.retrieveResource)
				r.Post("/", s.updateResource)
				r.Patch("/", s.updateResource)
				r.Put("/", s.replaceResource)
				r.Delete("/", s.deleteResource)
			})
		})
	})

	return s, nil
}

// NewWithDefaultFixtures serves articles with authors and tags
func NewWithDefaultFixtures(ctx context.Context) (*Server, error) {
	return New(ctx, bytes.NewReader(defaultFixtures))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the fake api on a local address and returns its base url
func (s *Server) Start() string {
	s.server = httptest.NewServer(s.router)
	return s.server.URL
}

func (s *Server) URL() string {
	if s.server == nil {
		return ""
	}
	return s.server.URL
}

func (s *Server) Close() {
	if s.server != nil {
		s.server.Close()
	}
}

// Requests returns the requests received so far, oldest first
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

// LastRequest returns the most recent request with the given method
func (s *Server) LastRequest(method string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method {
			return s.requests[i], true
		}
	}

	return Request{}, false
}

// Resource returns the stored state of a resource
func (s *Server) Resource(resourceType, resourceID string) (types.ResourceObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, _, ok := s.find(resourceType, resourceID)
	return resource, ok
}

func (s *Server) record(req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
}

func (s *Server) find(resourceType, resourceID string) (types.ResourceObject, int, bool) {
	for idx, r := range s.resources[resourceType] {
		if r.ID == resourceID {
			return r, idx, true
		}
	}

	return types.ResourceObject{}, -1, false
}

// related returns the resources referenced by the supplied resources, excluding
// the resources themselves. Only the named relationships are followed unless
// names is nil.
func (s *Server) related(resources []types.ResourceObject, names []string) []types.ResourceObject {
	seen := map[string]bool{}
	for _, r := range resources {
		seen[r.Ref().Key()] = true
	}

	included := []types.ResourceObject{}

	for _, r := range resources {
		relationNames := make([]string, 0, len(r.Relationships))
		for name := range r.Relationships {
			if names == nil || slices.Contains(names, name) {
				relationNames = append(relationNames, name)
			}
		}
		slices.Sort(relationNames)

		for _, name := range relationNames {
			for _, ref := range r.Relationships[name].Data.Refs() {
				if seen[ref.Key()] {
					continue
				}

				if resource, _, ok := s.find(ref.Type, ref.ID); ok {
					seen[ref.Key()] = true
					included = append(included, resource)
				}
			}
		}
	}

	return included
}
