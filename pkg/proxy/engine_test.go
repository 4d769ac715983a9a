package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// hookRecorder captures hook invocations for assertions.
type hookRecorder struct {
	mu        sync.Mutex
	requests  []*Flow
	completes []*Flow
	errors    []*Flow
	rewrite   func(*Flow)
}

func (h *hookRecorder) OnRequest(f *Flow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, f)
	if h.rewrite != nil {
		h.rewrite(f)
	}
}

func (h *hookRecorder) OnComplete(f *Flow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completes = append(h.completes, f)
}

func (h *hookRecorder) OnError(f *Flow, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, f)
}

func newTestEngine(t *testing.T) (*Engine, *hookRecorder) {
	t.Helper()
	e := New(Options{UpstreamScheme: "http"}, nil)
	rec := &hookRecorder{}
	e.Addons().Add(rec)
	return e, rec
}

func TestEngineForwardsToOriginalHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"model":"gpt"}` {
			t.Errorf("upstream saw body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	e, rec := newTestEngine(t)

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(`{"model":"gpt"}`))
	req.Host = strings.TrimPrefix(upstream.URL, "http://")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"ok":true}` {
		t.Fatalf("body = %q", got)
	}

	if len(rec.requests) != 1 || len(rec.completes) != 1 {
		t.Fatalf("hooks fired: %d requests, %d completes", len(rec.requests), len(rec.completes))
	}
	flow := rec.completes[0]
	if flow.State != FlowStateComplete {
		t.Errorf("State = %q", flow.State)
	}
	if string(flow.Request.Body) != `{"model":"gpt"}` {
		t.Errorf("Request.Body = %q", flow.Request.Body)
	}
	if flow.Request.Path != "/v1/chat/completions" {
		t.Errorf("Request.Path = %q", flow.Request.Path)
	}
	if flow.Response == nil || flow.Response.StatusCode != 200 {
		t.Fatalf("Response = %+v", flow.Response)
	}
	if string(flow.Response.Body) != `{"ok":true}` {
		t.Errorf("Response.Body = %q", flow.Response.Body)
	}
	if flow.Timestamps.ResponseDone.Before(flow.Timestamps.Created) {
		t.Error("ResponseDone before Created")
	}
}

func TestEngineHonorsRedirect(t *testing.T) {
	var origin, redirected bool

	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = true
	}))
	defer originSrv.Close()

	redirectSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirected = true
		if r.URL.Path != "/copilot/v1/messages" {
			t.Errorf("redirected path = %q", r.URL.Path)
		}
		w.WriteHeader(202)
	}))
	defer redirectSrv.Close()

	e, rec := newTestEngine(t)
	rec.rewrite = func(f *Flow) {
		f.Redirect = redirectSrv.URL + "/copilot" + f.Request.Path
	}

	req := httptest.NewRequest("POST", "/v1/messages", strings.NewReader("{}"))
	req.Host = strings.TrimPrefix(originSrv.URL, "http://")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 202 {
		t.Fatalf("status = %d", w.Code)
	}
	if origin {
		t.Error("request reached original host despite redirect")
	}
	if !redirected {
		t.Error("request did not reach redirect target")
	}
	// The snapshot keeps the pre-redirect destination.
	if got := rec.completes[0].Request.Host; got != req.Host {
		t.Errorf("Request.Host = %q, want %q", got, req.Host)
	}
}

func TestEngineRejectsConnect(t *testing.T) {
	e, rec := newTestEngine(t)

	req := httptest.NewRequest(http.MethodConnect, "http://api.openai.com:443", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", w.Code)
	}
	if len(rec.requests) != 0 {
		t.Error("CONNECT produced a flow")
	}
}

func TestEngineUpstreamError(t *testing.T) {
	e, rec := newTestEngine(t)

	req := httptest.NewRequest("GET", "/v1/models", nil)
	req.Host = "127.0.0.1:1" // nothing listens here
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if len(rec.errors) != 1 {
		t.Fatalf("error hooks fired %d times", len(rec.errors))
	}
	flow := rec.errors[0]
	if flow.State != FlowStateError || flow.Error == "" {
		t.Errorf("flow = state %q, error %q", flow.State, flow.Error)
	}
}

func TestEngineTruncatesLargeBodies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("b", 64)))
	}))
	defer upstream.Close()

	e := New(Options{UpstreamScheme: "http", MaxBodySize: 16}, nil)
	rec := &hookRecorder{}
	e.Addons().Add(rec)

	req := httptest.NewRequest("POST", "/v1/messages", strings.NewReader(strings.Repeat("a", 64)))
	req.Host = strings.TrimPrefix(upstream.URL, "http://")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}

	flow := rec.completes[0]
	if !flow.Request.BodyTruncated || len(flow.Request.Body) != 16 {
		t.Errorf("request body: truncated=%v len=%d", flow.Request.BodyTruncated, len(flow.Request.Body))
	}
	if !flow.Response.BodyTruncated || len(flow.Response.Body) != 16 {
		t.Errorf("response body: truncated=%v len=%d", flow.Response.BodyTruncated, len(flow.Response.Body))
	}
}

func TestEngineKeepsQueryString(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "alt=sse" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
	}))
	defer upstream.Close()

	e, rec := newTestEngine(t)

	req := httptest.NewRequest("POST", "/v1beta/models/gemini-pro:streamGenerateContent?alt=sse", strings.NewReader("{}"))
	req.Host = strings.TrimPrefix(upstream.URL, "http://")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if got := rec.completes[0].Request.Path; got != "/v1beta/models/gemini-pro:streamGenerateContent?alt=sse" {
		t.Errorf("Path = %q", got)
	}
}
