// Package remotetest provides an in-memory meal-planner backend for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"mealsync/internal/config"
	"mealsync/internal/remote"
)

// Server serves /health and any number of REST collections. Items are kept
// as decoded JSON objects. Posted items without an id get numeric ids starting
// at 101; any id the client sends is kept as is.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	down        bool
	nextID      int
	collections map[string]*collection
	custom      map[string]http.HandlerFunc
	requests    []string
	posted      map[string][]map[string]any
}

type collection struct {
	listField string
	itemField string
	items     []map[string]any
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:      100,
		collections: make(map[string]*collection),
		custom:      make(map[string]http.HandlerFunc),
		posted:      make(map[string][]map[string]any),
	}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(s.dispatch)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Client returns a remote client pointed at the server.
func (s *Server) Client() *remote.Client {
	return remote.NewClient(&config.Config{APIURL: s.URL, HealthTimeout: time.Second}, nil)
}

// Collection registers a REST collection at path. Lists are wrapped in
// listField and single records in itemField.
func (s *Server) Collection(path, listField, itemField string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[path] = &collection{listField: listField, itemField: itemField}
}

// Seed appends items to a registered collection, assigning ids to those
// without one.
func (s *Server) Seed(path string, items ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collections[path]
	for _, item := range items {
		if _, ok := item["id"]; !ok {
			item["id"] = s.newID()
		}
		c.items = append(c.items, item)
	}
}

// Items returns a copy of the records stored at path.
func (s *Server) Items(path string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[path]
	if !ok {
		return nil
	}
	return append([]map[string]any(nil), c.items...)
}

// Names returns the "name" field of every record at path.
func (s *Server) Names(path string) []string {
	var names []string
	for _, item := range s.Items(path) {
		names = append(names, fmt.Sprint(item["name"]))
	}
	return names
}

// SetDown makes /health answer 503 while down is true.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Handle overrides a single method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom[method+" "+path] = h
}

// Requests lists every request received other than health checks, as
// "METHOD /path?query".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Posted returns the bodies POSTed to path, as received.
func (s *Server) Posted(path string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.posted[path]...)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) newID() int {
	s.nextID++
	return s.nextID
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "maintenance"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	call := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		call += "?" + r.URL.RawQuery
	}
	s.requests = append(s.requests, call)
	custom, ok := s.custom[r.Method+" "+r.URL.Path]
	s.mu.Unlock()
	if ok {
		custom(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[r.URL.Path]; ok {
		switch r.Method {
		case http.MethodGet:
			WriteJSON(w, http.StatusOK, map[string]any{c.listField: c.filter(r)})
		case http.MethodPost:
			item, ok := decode(w, r)
			if !ok {
				return
			}
			s.posted[r.URL.Path] = append(s.posted[r.URL.Path], clone(item))
			if id, present := item["id"]; !present || id == nil || id == "" {
				item["id"] = s.newID()
			}
			c.items = append(c.items, item)
			WriteJSON(w, http.StatusCreated, map[string]any{c.itemField: item})
		default:
			WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
		return
	}

	slash := strings.LastIndex(r.URL.Path, "/")
	c, ok := s.collections[r.URL.Path[:slash]]
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id := r.URL.Path[slash+1:]
	index := c.indexOf(id)
	if index < 0 {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	}

	switch r.Method {
	case http.MethodPut:
		item, ok := decode(w, r)
		if !ok {
			return
		}
		item["id"] = c.items[index]["id"]
		c.items[index] = item
		WriteJSON(w, http.StatusOK, map[string]any{c.itemField: item})
	case http.MethodDelete:
		c.items = append(c.items[:index], c.items[index+1:]...)
		WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// filter keeps the records whose fields equal every query parameter.
func (c *collection) filter(r *http.Request) []map[string]any {
	out := []map[string]any{}
	for _, item := range c.items {
		match := true
		for key, values := range r.URL.Query() {
			if fmt.Sprint(item[key]) != values[0] {
				match = false
			}
		}
		if match {
			out = append(out, item)
		}
	}
	return out
}

func (c *collection) indexOf(id string) int {
	for i, item := range c.items {
		if fmt.Sprint(item["id"]) == id {
			return i
		}
	}
	return -1
}

func clone(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var item map[string]any
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return nil, false
	}
	return item, true
}
