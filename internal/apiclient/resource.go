package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// Resource exposes CRUD operations for one entity collection.
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource binds a collection path such as "/members" to client.
func NewResource[T any](client *Client, path string) *Resource[T] {
	return &Resource[T]{client: client, path: "/" + strings.Trim(path, "/")}
}

// Path returns the collection path.
func (r *Resource[T]) Path() string {
	return r.path
}

// List fetches the whole collection. Identical concurrent fetches share one
// upstream request and the raw payload is cached until the next mutation, so
// resources of different shapes over one path share the entry. The shared
// fetch outlives any single caller's cancellation; it is bounded by the
// client timeout.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	key, err := r.client.cache.BuildKey(ctx, "collection", strings.Trim(r.path, "/"), scopeOf(ctx))
	if err != nil {
		r.client.logger.Warn("build collection cache key", "path", r.path, "error", err)
		key = "collection:" + r.path + ":" + scopeOf(ctx)
	}
	detached := context.WithoutCancel(ctx)
	ch := r.client.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(detached, r.client.timeout)
		defer cancel()
		raw, _, err := Fetch(fetchCtx, r.client.cache, key, func(ctx context.Context) (json.RawMessage, error) {
			return r.client.do(ctx, http.MethodGet, r.path, nil, "")
		})
		return raw, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		raw, _ := res.Val.(json.RawMessage)
		items, err := DecodeCollection[T](raw)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	}
}

// Get fetches a single entity.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	raw, err := r.client.do(ctx, http.MethodGet, r.itemPath(id), nil, "")
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeOne[T](raw)
}

// Create posts payload as JSON and returns the created entity when the API
// echoes it.
func (r *Resource[T]) Create(ctx context.Context, payload any) (T, error) {
	raw, err := r.client.doJSON(ctx, http.MethodPost, r.path, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	r.client.invalidate(ctx)
	return DecodeOne[T](raw)
}

// Update replaces the entity identified by id.
func (r *Resource[T]) Update(ctx context.Context, id string, payload any) error {
	if _, err := r.client.doJSON(ctx, http.MethodPut, r.itemPath(id), payload); err != nil {
		return err
	}
	r.client.invalidate(ctx)
	return nil
}

// Delete removes the entity identified by id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.client.do(ctx, http.MethodDelete, r.itemPath(id), nil, ""); err != nil {
		return err
	}
	r.client.invalidate(ctx)
	return nil
}

// Upload is a file part sent alongside multipart form fields.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// CreateMultipart posts fields and an optional file as multipart/form-data.
func (r *Resource[T]) CreateMultipart(ctx context.Context, fields url.Values, file *Upload) (T, error) {
	var zero T
	body, contentType, err := encodeMultipart(fields, file)
	if err != nil {
		return zero, err
	}
	raw, err := r.client.do(ctx, http.MethodPost, r.path, body, contentType)
	if err != nil {
		return zero, err
	}
	r.client.invalidate(ctx)
	return DecodeOne[T](raw)
}

// UpdateMultipart puts fields and an optional file as multipart/form-data.
func (r *Resource[T]) UpdateMultipart(ctx context.Context, id string, fields url.Values, file *Upload) error {
	body, contentType, err := encodeMultipart(fields, file)
	if err != nil {
		return err
	}
	if _, err := r.client.do(ctx, http.MethodPut, r.itemPath(id), body, contentType); err != nil {
		return err
	}
	r.client.invalidate(ctx)
	return nil
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func encodeMultipart(fields url.Values, file *Upload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range fields[key] {
			if err := writer.WriteField(key, value); err != nil {
				return nil, "", err
			}
		}
	}

	if file != nil && len(file.Data) > 0 {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
