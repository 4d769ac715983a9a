// Package capture turns completed flows into redacted, persistable
// capture records. Everything here is best-effort: a flow that cannot be
// captured is skipped, never an error on the traffic path.
package capture

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/llmtap/llmtap/pkg/classify"
	"github.com/llmtap/llmtap/pkg/proxy"
)

// Identity carries the process-wide provenance stamped onto every capture.
// It is resolved once at startup and constant for the process lifetime.
type Identity struct {
	Source    string
	SessionID string
}

// Timings holds per-phase latencies in milliseconds. The engine only
// exposes end-to-end timing, so send/wait/receive stay zero; they exist
// for schema compatibility with the sibling capture format.
type Timings struct {
	SendMS    int64 `json:"send_ms"`
	WaitMS    int64 `json:"wait_ms"`
	ReceiveMS int64 `json:"receive_ms"`
	TotalMS   int64 `json:"total_ms"`
}

// Record is the persisted unit: one JSON object per captured flow. Field
// names are a compatibility contract with the downstream ingestion
// pipeline and must not change shape.
type Record struct {
	Timestamp           string             `json:"timestamp"`
	SessionID           string             `json:"sessionId,omitempty"`
	Method              string             `json:"method"`
	Path                string             `json:"path"`
	Source              string             `json:"source"`
	Provider            classify.Provider  `json:"provider"`
	APIFormat           classify.APIFormat `json:"apiFormat"`
	TargetURL           string             `json:"targetUrl"`
	RequestHeaders      map[string]string  `json:"requestHeaders"`
	RequestBody         any                `json:"requestBody,omitzero"`
	RequestBytes        int                `json:"requestBytes"`
	ResponseStatus      int                `json:"responseStatus"`
	ResponseHeaders     map[string]string  `json:"responseHeaders"`
	ResponseBody        string             `json:"responseBody"`
	ResponseIsStreaming bool               `json:"responseIsStreaming"`
	ResponseBytes       int                `json:"responseBytes"`
	Timings             Timings            `json:"timings"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FromFlow assembles a Record from a completed flow, or returns nil when
// the flow is not LLM API traffic. Only POST flows to a known provider
// host are captured; everything else is silently ignored.
func FromFlow(flow *proxy.Flow, id Identity, now time.Time) *Record {
	if flow == nil || flow.Request == nil || flow.Response == nil {
		return nil
	}
	if flow.Request.Method != http.MethodPost {
		return nil
	}
	provider := classify.ProviderFor(flow.Request.Host)
	if provider == classify.None {
		return nil
	}

	// Request body is stored as parsed JSON or not at all; a raw string
	// fallback would leak payloads the parser could not vouch for.
	var reqBody any
	if len(flow.Request.Body) > 0 {
		var parsed any
		if err := json.Unmarshal(flow.Request.Body, &parsed); err == nil {
			reqBody = parsed
		}
	}

	respText := decodeText(flow.Response.Body, flow.Response.Headers.Get("Content-Encoding"))
	streaming := strings.Contains(flow.Response.Headers.Get("Content-Type"), "text/event-stream")

	return &Record{
		Timestamp:           now.UTC().Format(timestampLayout),
		SessionID:           id.SessionID,
		Method:              flow.Request.Method,
		Path:                flow.Request.Path,
		Source:              id.Source,
		Provider:            provider,
		APIFormat:           classify.APIFormatFor(flow.Request.Path, provider),
		TargetURL:           flow.Request.URL,
		RequestHeaders:      RedactHeaders(flow.Request.Headers),
		RequestBody:         reqBody,
		RequestBytes:        len(flow.Request.Body),
		ResponseStatus:      flow.Response.StatusCode,
		ResponseHeaders:     RedactHeaders(flow.Response.Headers),
		ResponseBody:        respText,
		ResponseIsStreaming: streaming,
		ResponseBytes:       len(flow.Response.Body),
		Timings:             Timings{TotalMS: totalMS(flow.Timestamps.Created, flow.Timestamps.ResponseDone)},
	}
}

// totalMS measures request start to response end, floored at zero.
// A missing end timestamp collapses to the start, never negative.
func totalMS(start, end time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	if end.IsZero() {
		end = start
	}
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
