// Package memos is a thin REST client for the Pensieve/memos screenshot
// service. The client fails fast: the circuit breaker upstream depends on
// timely error signals, so every call is bounded by the HTTP timeout.
package memos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Entity is one captured screenshot record as the memos API reports it.
type Entity struct {
	ID            int64  `json:"id"`
	Filepath      string `json:"filepath"`
	Filename      string `json:"filename"`
	CreatedAt     string `json:"created_at"`
	FileCreatedAt string `json:"file_created_at"`
	LastScanAt    string `json:"last_scan_at"`
	FileTypeGroup string `json:"file_type_group"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// IsHealthy reports whether the memos service answers its health check.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// SearchEntities runs a full-text search over OCR'd screenshot content.
func (c *Client) SearchEntities(ctx context.Context, term string, limit int) ([]Entity, error) {
	q := url.Values{}
	q.Set("q", term)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var entities []Entity
	if err := c.getJSON(ctx, "/api/search?"+q.Encode(), &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntities fetches a bounded listing of recent screenshot entities.
func (c *Client) GetEntities(ctx context.Context, limit int) ([]Entity, error) {
	path := "/api/entities"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var entities []Entity
	if err := c.getJSON(ctx, path, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntity fetches a single entity by id. A missing entity is (nil, nil).
func (c *Client) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/entities/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memos: unexpected status %d for entity %d", resp.StatusCode, id)
	}

	var entity Entity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return nil, fmt.Errorf("memos: failed to decode entity %d: %w", id, err)
	}
	return &entity, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("memos: unexpected status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("memos: failed to decode %s: %w", path, err)
	}
	return nil
}
