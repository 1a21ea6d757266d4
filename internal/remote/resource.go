package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"mealsync/internal/shared"
)

// Record is implemented by every record type exchanged with the backend.
type Record interface {
	GetID() shared.ID
	Validate() error
}

// Endpoint describes one REST collection. ListField and ItemField name the
// envelope keys the backend wraps responses in; a response without the key is
// decoded as the bare value.
type Endpoint struct {
	Path      string
	ListField string
	ItemField string
	// Query is appended to list requests (e.g. week=Week - 1).
	Query url.Values
}

// Resource is a typed client for one Endpoint.
type Resource[T Record] struct {
	client   *Client
	endpoint Endpoint
}

// NewResource binds an endpoint to a client.
func NewResource[T Record](c *Client, ep Endpoint) *Resource[T] {
	return &Resource[T]{client: c, endpoint: ep}
}

// Endpoint returns the endpoint this resource talks to.
func (r *Resource[T]) Endpoint() Endpoint { return r.endpoint }

// List fetches the collection. Records that fail validation are dropped.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	path := r.endpoint.Path
	if len(r.endpoint.Query) > 0 {
		path += "?" + r.endpoint.Query.Encode()
	}

	var raw json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(unwrap(raw, r.endpoint.ListField), &entries); err != nil {
		return nil, &shared.Error{Kind: shared.KindUnknown, Op: "GET " + r.endpoint.Path, Message: "malformed list response", Err: err}
	}

	items := make([]T, 0, len(entries))
	for i, entry := range entries {
		var item T
		if err := json.Unmarshal(entry, &item); err != nil {
			r.client.logger.Warn("dropping undecodable record",
				zap.String("path", r.endpoint.Path), zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := item.Validate(); err != nil {
			r.client.logger.Warn("dropping invalid record",
				zap.String("path", r.endpoint.Path), zap.Int("index", i), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Create posts item and returns the server's version of it. An empty or
// temporary id is left out of the body so the backend assigns the real one.
func (r *Resource[T]) Create(ctx context.Context, item T) (T, error) {
	body, err := createBody(item)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to encode %s: %w", r.endpoint.Path, err)
	}
	return r.send(ctx, http.MethodPost, r.endpoint.Path, body, item, false)
}

func createBody[T Record](item T) (any, error) {
	if id := item.GetID(); id != "" && !id.IsTemp() {
		return item, nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return item, nil
	}
	delete(fields, "id")
	return fields, nil
}

// Update replaces the record with the given id. A response without a body
// echoes item back.
func (r *Resource[T]) Update(ctx context.Context, id shared.ID, item T) (T, error) {
	return r.send(ctx, http.MethodPut, r.itemPath(id), item, item, true)
}

// Remove deletes the record with the given id.
func (r *Resource[T]) Remove(ctx context.Context, id shared.ID) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
}

func (r *Resource[T]) itemPath(id shared.ID) string {
	return r.endpoint.Path + "/" + url.PathEscape(id.String())
}

func (r *Resource[T]) send(ctx context.Context, method, path string, body any, item T, echo bool) (T, error) {
	var zero T
	op := method + " " + path

	var raw json.RawMessage
	if err := r.client.Do(ctx, method, path, body, &raw); err != nil {
		return zero, err
	}
	if len(raw) == 0 && echo {
		return item, nil
	}

	var out T
	err := json.Unmarshal(unwrap(raw, r.endpoint.ItemField), &out)
	if err == nil {
		err = out.Validate()
	}
	if err == nil && out.GetID() == "" {
		err = shared.Validation("record has no id")
	}
	if err != nil {
		if echo {
			// Some endpoints answer updates with {"message": ...} only.
			return item, nil
		}
		return zero, &shared.Error{Kind: shared.KindUnknown, Op: op, Message: "invalid record in response", Err: err}
	}
	return out, nil
}

func unwrap(data json.RawMessage, field string) json.RawMessage {
	if field == "" {
		return data
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return data
	}
	if inner, ok := envelope[field]; ok {
		return inner
	}
	return data
}
