package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/owulveryck/amcp/internal/amcperr"
)

// httpClient does the raw POST <base>/api/generate round trip; separated
// from Connector so timeouts/backoff/caching stay in one place and this
// stays a thin wire adapter, the same split the teacher's ollama.Client
// keeps from its callers.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

func (h *httpClient) generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req.toWire())
	if err != nil {
		return "", amcperr.New(amcperr.KindValidation, component, "generate", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", amcperr.New(amcperr.KindInternal, component, "generate", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", amcperr.New(amcperr.KindUnavailable, component, "generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", amcperr.New(amcperr.KindUnavailable, component, "generate", errBadStatus(resp.StatusCode, string(data)))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", amcperr.New(amcperr.KindInternal, component, "generate", err)
	}
	return wire.Response, nil
}
