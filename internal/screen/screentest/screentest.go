// Package screentest provides an in-memory church API and a request harness
// for entity screen tests.
package screentest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/screen"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
)

// Request is one call received by the API.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
	Files  map[string]string
}

type failure struct {
	status  int
	message string
}

// API is an in-memory REST API serving collections as {"data": [...]}.
type API struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	failures    map[string]failure
	requests    []Request
	nextID      int
}

// NewAPI returns an empty API.
func NewAPI() *API {
	return &API{collections: map[string][]map[string]any{}, failures: map[string]failure{}}
}

// Seed appends items to the collection at path, e.g. "/members".
func (a *API) Seed(path string, items ...map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, item := range items {
		if _, ok := item["id"]; !ok {
			a.nextID++
			item["id"] = a.nextID
		}
		a.collections[path] = append(a.collections[path], item)
	}
}

// Items returns the stored collection.
func (a *API) Items(path string) []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]any(nil), a.collections[path]...)
}

// Requests returns every call received so far.
func (a *API) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Request(nil), a.requests...)
}

// Fail makes every call to method path answer status with message.
func (a *API) Fail(method, path string, status int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[method+" "+path] = failure{status: status, message: message}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	body, files := decodeBody(r)
	a.requests = append(a.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body, Files: files})
	if f, ok := a.failures[r.Method+" "+r.URL.Path]; ok {
		writeJSON(w, f.status, map[string]any{"message": f.message})
		return
	}

	collection, id := splitPath(r.URL.Path)
	switch {
	case r.Method == http.MethodGet && id == "":
		items := a.collections[collection]
		if items == nil {
			items = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
	case r.Method == http.MethodPost && id == "":
		a.nextID++
		body["id"] = a.nextID
		body["createdAt"] = time.Now().UTC().Format(time.RFC3339)
		a.collections[collection] = append(a.collections[collection], body)
		writeJSON(w, http.StatusCreated, map[string]any{"data": body})
	case id != "":
		idx := a.find(collection, id)
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "introuvable"})
			return
		}
		items := a.collections[collection]
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, items[idx])
		case http.MethodPut, http.MethodPatch:
			for k, v := range body {
				items[idx][k] = v
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": items[idx]})
		case http.MethodDelete:
			a.collections[collection] = append(items[:idx:idx], items[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *API) find(collection, id string) int {
	for i, item := range a.collections[collection] {
		if fmt.Sprint(item["id"]) == id {
			return i
		}
	}
	return -1
}

func splitPath(path string) (string, string) {
	trimmed := strings.Trim(path, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return "/" + trimmed[:idx], trimmed[idx+1:]
	}
	return "/" + trimmed, ""
}

func decodeBody(r *http.Request) (map[string]any, map[string]string) {
	body := map[string]any{}
	files := map[string]string{}
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		_ = json.NewDecoder(r.Body).Decode(&body)
	case strings.HasPrefix(contentType, "multipart/"):
		if err := r.ParseMultipartForm(8 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					body[k] = v[0]
				}
			}
			for k, v := range r.MultipartForm.File {
				if len(v) > 0 {
					files[k] = v[0].Filename
				}
			}
		}
	}
	return body, files
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Client serves the API over HTTP and returns a client with a redis cache.
func (a *API) Client(t *testing.T) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return apiclient.New(apiclient.Options{BaseURL: srv.URL, Cache: apiclient.NewCache(rdb, time.Minute)})
}

// Harness routes requests through a fixed session and principal.
type Harness struct {
	Router  chi.Router
	Session *shared.Session
	deps    screen.Deps
}

// NewHarness builds a router whose requests carry a signed-in principal with
// role.
func NewHarness(t *testing.T, role string) *Harness {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sess, err := shared.NewSessionManager(rdb, "ecclesia_session", time.Hour, false).
		Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetPrincipal(&shared.Principal{
		UserID: "1", Name: "Marie Joseph", Role: role,
		ChurchID: "7", ChurchName: "Église Centrale", Token: "tok",
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), sess)
			if p := sess.Principal(); p != nil {
				ctx = shared.ContextWithPrincipal(ctx, p)
				ctx = apiclient.WithToken(ctx, p.Token)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	return &Harness{
		Router:  r,
		Session: sess,
		deps: screen.Deps{
			Templates: engine,
			CSRF:      shared.NewCSRFManager("test"),
			PageSize:  10,

			Submissions: shared.NewIdempotencyStore(rdb, time.Minute),
		},
	}
}

// Deps returns screen dependencies backed by the real templates.
func (h *Harness) Deps() screen.Deps {
	return h.deps
}

// Get performs a GET request.
func (h *Harness) Get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// Post submits values as an urlencoded form. A fresh submission key is added
// unless values carries one.
func (h *Harness) Post(target string, values url.Values) *httptest.ResponseRecorder {
	if values == nil {
		values = url.Values{}
	}
	if !values.Has(shared.SubmissionField) {
		values.Set(shared.SubmissionField, shared.NewSubmissionKey())
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, req)
	return rec
}

// State decodes the stored view state of screen name.
func (h *Harness) State(name, defaultTab string) listing.ViewState {
	return listing.DecodeViewState(h.Session.Get("view:"+name), defaultTab)
}

// Flash pops the next flash message text, empty when none.
func (h *Harness) Flash() string {
	if msg := h.Session.PopFlash(); msg != nil {
		return msg.Message
	}
	return ""
}
