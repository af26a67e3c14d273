package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type studioClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *studioClient {
	return &studioClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// newRequest builds a request with identity headers applied.
func (c *studioClient) newRequest(method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user := resolvedUser(); user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	if token := resolvedToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON performs a request and decodes the JSON response into v (which
// may be nil). Any status outside 2xx is an error carrying the response
// body.
func (c *studioClient) doJSON(method, path string, body any, v any) error {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *studioClient) getJSON(path string, v any) error {
	return c.doJSON(http.MethodGet, path, nil, v)
}

func (c *studioClient) postJSON(path string, body any, v any) error {
	return c.doJSON(http.MethodPost, path, body, v)
}

func (c *studioClient) putJSON(path string, body any, v any) error {
	return c.doJSON(http.MethodPut, path, body, v)
}

func (c *studioClient) patchJSON(path string, body any, v any) error {
	return c.doJSON(http.MethodPatch, path, body, v)
}

func (c *studioClient) delete(path string) error {
	return c.doJSON(http.MethodDelete, path, nil, nil)
}
