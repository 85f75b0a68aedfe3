package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"llamad/pkg/types"
)

// CheckHealth classifies the server's /health answer. It never returns an
// error: an unreachable server is a classification, not a failure.
func (c *Client) CheckHealth(ctx context.Context) types.Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return types.Health{Status: types.HealthDown, Message: err.Error()}
	}
	c.setAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Health{Status: types.HealthDown, Message: err.Error()}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return types.Health{OK: true, Code: resp.StatusCode, Status: types.HealthReady}
	case http.StatusServiceUnavailable:
		return types.Health{Code: resp.StatusCode, Status: types.HealthLoading, Message: loadingDetail(resp.Body)}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Health{
			Code:    resp.StatusCode,
			Status:  types.HealthUnavailable,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(b)),
		}
	}
}

// loadingDetail pulls error.message out of a 503 body, the shape llama
// servers answer with while a model loads.
func loadingDetail(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.Error.Message == "" {
		return "Loading"
	}
	return body.Error.Message
}

// Props fetches the server's capability report. Callers treating a failed
// fetch as "capabilities unknown" can rely on the zero value.
func (c *Client) Props(ctx context.Context) (types.ServerProps, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/props", nil)
	if err != nil {
		return types.ServerProps{}, err
	}
	c.setAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ServerProps{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ServerProps{}, fmt.Errorf("props: %s", resp.Status)
	}
	var props types.ServerProps
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&props); err != nil {
		return types.ServerProps{}, fmt.Errorf("props: decode: %w", err)
	}
	return props, nil
}

// SupportsVision reports whether the server advertises image input. Any
// failure to find out reads as no.
func (c *Client) SupportsVision(ctx context.Context) bool {
	props, err := c.Props(ctx)
	if err != nil {
		return false
	}
	return props.SupportsVision()
}
