package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshotHTMLSendsViewport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/screenshot/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "png", r.FormValue("format"))
		assert.Equal(t, "340", r.FormValue("width"))
		assert.Equal(t, "540", r.FormValue("height"))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "index.html", header.Filename)
		html, _ := io.ReadAll(file)
		assert.Equal(t, "<p>badge</p>", string(html))
		_, _ = w.Write([]byte("PNG"))
	}))
	t.Cleanup(server.Close)

	data, err := NewClient(server.URL).ScreenshotHTML(context.Background(), "<p>badge</p>", Screenshot{Width: 340, Height: 540})
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))
}

func TestRenderHTMLRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-"))
	}))
	t.Cleanup(server.Close)

	data, err := NewClient(server.URL).RenderHTML(context.Background(), "<html></html>", PaperSize{})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL).ScreenshotHTML(context.Background(), "<html></html>", Screenshot{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPingHandler(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	}))
	t.Cleanup(healthy.Close)

	router := chi.NewRouter()
	NewHandler(NewClient(healthy.URL), slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := chi.NewRouter()
	NewHandler(NewClient("http://127.0.0.1:1"), slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(down)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
