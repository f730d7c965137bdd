package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/steptrack/steptrack/internal/session"
	"github.com/steptrack/steptrack/internal/ws"
)

// HTTPClient makes REST calls to the steptrack daemon.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:8787").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// State fetches /api/state.
func (c *HTTPClient) State() (*session.State, error) {
	var st session.State
	if err := c.get("/api/state", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Config fetches /api/config.
func (c *HTTPClient) Config() (*ws.ConfigPayload, error) {
	var cfg ws.ConfigPayload
	if err := c.get("/api/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Start sends POST /api/start and returns the resulting state.
func (c *HTTPClient) Start() (*session.State, error) {
	return c.command("/api/start")
}

// Stop sends POST /api/stop and returns the resulting state.
func (c *HTTPClient) Stop() (*session.State, error) {
	return c.command("/api/stop")
}

// Reset sends POST /api/reset and returns the resulting state.
func (c *HTTPClient) Reset() (*session.State, error) {
	return c.command("/api/reset")
}

func (c *HTTPClient) command(path string) (*session.State, error) {
	var st session.State
	if err := c.post(path, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) post(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(body))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
