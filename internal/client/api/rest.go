package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListParams control ordering and pagination of Select.
type ListParams struct {
	OrderBy    string // column name, e.g. "created_at"
	Descending bool
	Limit      int // 0 means no limit
	Offset     int
}

// Select lists rows of table belonging to owner.
func Select[T any](ctx context.Context, c *Client, table, owner string, p ListParams) ([]T, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+owner)
	if p.OrderBy != "" {
		dir := "asc"
		if p.Descending {
			dir = "desc"
		}
		q.Set("order", p.OrderBy+"."+dir)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
		q.Set("offset", strconv.Itoa(p.Offset))
	}

	var out []T
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single row by id.
func Get[T any](ctx context.Context, c *Client, table, id string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, "/rest/v1/"+table+"/"+id, nil, nil, &out)
	return out, err
}

// Insert creates a row and returns the persisted entity, durable id and
// server timestamps included.
func Insert[T any](ctx context.Context, c *Client, table string, row T) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, &out)
	return out, err
}

// Update patches selected fields of a row and returns the updated entity.
func Update[T any](ctx context.Context, c *Client, table, id string, fields map[string]any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPatch, "/rest/v1/"+table+"/"+id, nil, fields, &out)
	return out, err
}

// Delete removes a row. The backend returns no body.
func Delete(ctx context.Context, c *Client, table, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table+"/"+id, nil, nil, nil)
}
