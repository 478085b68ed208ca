package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// probeTimeout bounds the health probe independently of the
// generation timeout.
const probeTimeout = 5 * time.Second

// Probe checks backend reachability without generating anything.
//
// llama.cpp-style servers (conventionally on :8080) expose /health;
// Ollama-style servers expose /api/tags. The probe is advisory:
// callers log the result and keep running, since the backend may come
// up later.
func (c *Client) Probe(ctx context.Context) error {
	path := "/api/tags"
	if strings.HasSuffix(c.config.BaseURL, ":8080") {
		path = "/health"
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: probe %s returned %d", ErrBackendUnavailable, path, resp.StatusCode)
	}
	return nil
}
