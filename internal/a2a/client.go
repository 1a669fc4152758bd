package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/owulveryck/amcp/internal/amcperr"
)

// Client pushes Messages to an external A2A endpoint over HTTP/JSON,
// retrying transient failures with exponential backoff — the same pattern
// the teacher's PublishTask uses around its gRPC call, adapted to an HTTP
// round trip.
type Client struct {
	httpClient *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

// NewClient constructs a Client with a 10s default timeout and the same
// retry budget (3) as the LLM connector's default (spec section 6 reuses
// the same retry posture for every outbound HTTP collaborator).
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: 3,
		logger:     logger,
	}
}

// PushMessage POSTs msg to <endpoint>/messages, a one-shot fire-and-forget
// event push per spec section 6.
func (c *Client) PushMessage(ctx context.Context, endpoint string, msg *Message) error {
	return c.post(ctx, endpoint+"/messages", msg, nil)
}

// SendRequest POSTs msg to <endpoint>/requests and decodes the synchronous
// response body into a Message.
func (c *Client) SendRequest(ctx context.Context, endpoint string, msg *Message) (*Message, error) {
	var resp Message
	if err := c.post(ctx, endpoint+"/requests", msg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, url string, msg *Message, out *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return amcperr.New(amcperr.KindValidation, component, "post", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set(headerContentType, contentTypeJSON)
		req.Header.Set(headerA2AVersion, a2aVersion)
		if cid := msg.Metadata["correlationId"]; cid != "" {
			req.Header.Set(headerCorrelationID, cid)
		} else {
			req.Header.Set(headerCorrelationID, uuid.NewString())
		}
		if tok := msg.Metadata[metadataNamespace+"authToken"]; tok != "" {
			req.Header.Set("Authorization", tok)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("a2a endpoint returned status %d: %s", resp.StatusCode, string(data))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("decoding a2a response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		c.logger.ErrorContext(ctx, "a2a request failed", "url", url, "error", err)
		return amcperr.New(amcperr.KindUnavailable, component, "post", err)
	}
	return nil
}
