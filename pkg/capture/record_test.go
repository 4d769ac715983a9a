package capture

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/llmtap/llmtap/pkg/classify"
	"github.com/llmtap/llmtap/pkg/proxy"
)

func testFlow(method, host, path string) *proxy.Flow {
	f := &proxy.Flow{ID: "test"}
	f.Request = &proxy.CapturedRequest{
		Method:  method,
		Host:    host,
		Path:    path,
		URL:     "https://" + host + path,
		Headers: http.Header{},
	}
	f.Response = &proxy.CapturedResponse{
		StatusCode: 200,
		Headers:    http.Header{},
	}
	f.Timestamps.Created = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f.Timestamps.ResponseDone = f.Timestamps.Created.Add(1500 * time.Millisecond)
	return f
}

func TestFromFlow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 2, 0, time.UTC)
	id := Identity{Source: "copilot", SessionID: "abcd1234"}

	t.Run("anthropic_streaming_messages", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.anthropic.com", "/v1/messages")
		f.Request.Body = []byte(`{"model":"claude","max_tokens":10}`)
		f.Response.Headers.Set("Content-Type", "text/event-stream")
		f.Response.Body = []byte("event: message_start\n\n")

		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.Provider != classify.Anthropic {
			t.Errorf("provider = %q, want anthropic", rec.Provider)
		}
		if rec.APIFormat != classify.FormatAnthropicMessages {
			t.Errorf("apiFormat = %q, want anthropic-messages", rec.APIFormat)
		}
		if !rec.ResponseIsStreaming {
			t.Error("expected responseIsStreaming=true for event-stream content type")
		}
		if rec.Timings.TotalMS != 1500 {
			t.Errorf("total_ms = %d, want 1500", rec.Timings.TotalMS)
		}
		if rec.Timings.SendMS != 0 || rec.Timings.WaitMS != 0 || rec.Timings.ReceiveMS != 0 {
			t.Error("fine-grained timings must stay zero")
		}
		body, ok := rec.RequestBody.(map[string]any)
		if !ok || body["model"] != "claude" {
			t.Errorf("requestBody not parsed: %#v", rec.RequestBody)
		}
		if rec.Timestamp != "2026-08-30T12:00:02.000Z" {
			t.Errorf("timestamp = %q", rec.Timestamp)
		}
	})

	t.Run("chatgpt_backend_path", func(t *testing.T) {
		f := testFlow(http.MethodPost, "chatgpt.com", "/backend-api/conversation")
		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.Provider != classify.ChatGPT {
			t.Errorf("provider = %q, want chatgpt", rec.Provider)
		}
		if rec.APIFormat != classify.FormatChatGPTBackend {
			t.Errorf("apiFormat = %q, want chatgpt-backend", rec.APIFormat)
		}
	})

	t.Run("non_post_is_skipped", func(t *testing.T) {
		f := testFlow(http.MethodGet, "api.anthropic.com", "/v1/messages")
		if rec := FromFlow(f, id, now); rec != nil {
			t.Fatalf("expected skip for GET, got %+v", rec)
		}
	})

	t.Run("unknown_host_is_skipped", func(t *testing.T) {
		f := testFlow(http.MethodPost, "example.com", "/v1/messages")
		if rec := FromFlow(f, id, now); rec != nil {
			t.Fatalf("expected skip for unknown host, got %+v", rec)
		}
	})

	t.Run("unparseable_request_body_is_absent", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.openai.com", "/v1/chat/completions")
		f.Request.Body = []byte("not json at all")

		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.RequestBody != nil {
			t.Errorf("expected absent requestBody, got %#v", rec.RequestBody)
		}
		if rec.RequestBytes != len("not json at all") {
			t.Errorf("requestBytes = %d", rec.RequestBytes)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "requestBody") {
			t.Error("requestBody key present in serialized record despite parse failure")
		}
	})

	t.Run("gzip_response_body_decoded", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(`{"id":"resp_1"}`))
		zw.Close()

		f := testFlow(http.MethodPost, "api.openai.com", "/v1/responses")
		f.Response.Headers.Set("Content-Encoding", "gzip")
		f.Response.Body = buf.Bytes()

		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.ResponseBody != `{"id":"resp_1"}` {
			t.Errorf("responseBody = %q", rec.ResponseBody)
		}
		// Byte counts reflect the wire, not the decoded text.
		if rec.ResponseBytes != buf.Len() {
			t.Errorf("responseBytes = %d, want %d", rec.ResponseBytes, buf.Len())
		}
	})

	t.Run("undecodable_response_body_is_empty", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.anthropic.com", "/v1/messages")
		f.Response.Headers.Set("Content-Type", "text/event-stream")
		f.Response.Headers.Set("Content-Encoding", "gzip")
		f.Response.Body = []byte{0xff, 0xfe, 0x00} // not gzip

		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.ResponseBody != "" {
			t.Errorf("expected empty responseBody, got %q", rec.ResponseBody)
		}
		// Streaming detection works off the content type even when the
		// body could not be decoded.
		if !rec.ResponseIsStreaming {
			t.Error("expected streaming flag despite undecodable body")
		}
	})

	t.Run("timing_never_negative", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.anthropic.com", "/v1/messages")
		f.Timestamps.ResponseDone = f.Timestamps.Created.Add(-5 * time.Second)
		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.Timings.TotalMS != 0 {
			t.Errorf("total_ms = %d, want 0 for clock skew", rec.Timings.TotalMS)
		}
	})

	t.Run("missing_end_timestamp", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.anthropic.com", "/v1/messages")
		f.Timestamps.ResponseDone = time.Time{}
		rec := FromFlow(f, id, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		if rec.Timings.TotalMS != 0 {
			t.Errorf("total_ms = %d, want 0 for missing end", rec.Timings.TotalMS)
		}
	})

	t.Run("empty_session_id_omitted", func(t *testing.T) {
		f := testFlow(http.MethodPost, "api.anthropic.com", "/v1/messages")
		rec := FromFlow(f, Identity{Source: "copilot"}, now)
		if rec == nil {
			t.Fatal("expected a record")
		}
		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "sessionId") {
			t.Errorf("sessionId present for empty session: %s", data)
		}
	})
}
