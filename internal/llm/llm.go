// Package llm implements the LLM connector (spec component C12): an
// asynchronous, rate-limited HTTP/JSON client to a local Ollama-style
// endpoint, with a two-tier cache, bounded concurrency, per-model
// timeouts, exponential backoff, and fallback-manager-backed degradation.
// The HTTP call shape is grounded on the teacher's Ollama client
// (pkg/ollama/client.go in the hector retrieval pack), rebuilt against
// golang.org/x/sync/semaphore and golang.org/x/time/rate for concurrency
// and pacing instead of that package's own httpclient wrapper.
package llm

import (
	"time"
)

const component = "llm"

// Request is one generate call, matching the Ollama request body from
// spec section 6: model, prompt, and optional sampling/hardware hints.
type Request struct {
	Model       string
	Prompt      string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	NumGPU      *int
	NumThread   *int
}

// wireRequest is the JSON body actually POSTed to <base>/api/generate.
type wireRequest struct {
	Model       string       `json:"model"`
	Prompt      string       `json:"prompt"`
	Stream      bool         `json:"stream"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Options     *wireOptions `json:"options,omitempty"`
}

type wireOptions struct {
	NumGPU    *int `json:"num_gpu,omitempty"`
	NumThread *int `json:"num_thread,omitempty"`
}

func (r Request) toWire() wireRequest {
	w := wireRequest{Model: r.Model, Prompt: r.Prompt, Stream: false, Temperature: r.Temperature, MaxTokens: r.MaxTokens, TopP: r.TopP}
	if r.NumGPU != nil || r.NumThread != nil {
		w.Options = &wireOptions{NumGPU: r.NumGPU, NumThread: r.NumThread}
	}
	return w
}

// wireResponse is the JSON shape of the Ollama response, per spec section 6.
type wireResponse struct {
	Response string `json:"response"`
}

// Stats are the connector's exposed statistics, per spec section 4.9.
type Stats struct {
	TotalRequests int64
	CacheHits     int64
	Failures      int64
	FallbacksUsed int64
	AvgLatency    time.Duration
}
