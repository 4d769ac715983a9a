package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type contextKey string

const flowContextKey contextKey = "flow"

// Engine is the interception core. It snapshots each incoming request into
// a Flow, dispatches it through the addon pipeline, forwards it to its
// original destination (or a redirect set by a request hook), and buffers
// the full response before response hooks fire.
//
// TLS termination is not handled here; the engine expects decrypted HTTP,
// typically from a TLS-terminating front that preserves the Host header.
type Engine struct {
	store   *FlowStore
	addons  *AddonManager
	forward *httputil.ReverseProxy
	opts    Options
	server  *http.Server
	log     *zap.Logger
}

// New creates a new Engine with the given options.
func New(opts Options, log *zap.Logger) *Engine {
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		store:  NewFlowStore(opts.MaxFlows),
		addons: NewAddonManager(),
		opts:   opts,
		log:    log,
	}

	e.forward = &httputil.ReverseProxy{
		Director:       e.direct,
		ModifyResponse: e.modifyResponse,
		ErrorHandler:   e.errorHandler,
		FlushInterval:  -1, // flush immediately for streaming support
	}

	return e
}

// Options returns the resolved options the engine was started with.
func (e *Engine) Options() Options { return e.opts }

// Store returns the flow store (read-only access for UI components).
func (e *Engine) Store() *FlowStore { return e.store }

// Addons returns the addon manager so callers can register addons.
func (e *Engine) Addons() *AddonManager { return e.addons }

// Start runs the interception server until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	e.server = &http.Server{
		Addr:    e.opts.ListenAddr,
		Handler: e,
	}

	g.Go(func() error {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("intercept server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.server.Shutdown(shutCtx)
		return nil
	})

	return g.Wait()
}

// ServeHTTP implements http.Handler. It is the main interception entry point.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		// Raw tunnels carry TLS we cannot see; terminating them is the
		// front's job, not ours.
		http.Error(w, "CONNECT not supported", http.StatusNotImplemented)
		return
	}
	if r.Host == "" && !r.URL.IsAbs() {
		http.Error(w, "no destination host", http.StatusBadRequest)
		return
	}

	flow := e.newFlow(r)
	e.store.Add(flow)

	if err := bufferRequestBody(flow, r, e.opts.MaxBodySize); err != nil {
		flow.State = FlowStateError
		flow.Error = fmt.Sprintf("buffer request: %v", err)
		e.store.Update(flow, FlowEventError)
		http.Error(w, "internal proxy error", http.StatusInternalServerError)
		return
	}

	flow.Timestamps.RequestDone = time.Now()

	e.addons.FireRequest(flow)

	// Attach the flow to the request context so the director and
	// modifyResponse can find it.
	r = r.WithContext(context.WithValue(r.Context(), flowContextKey, flow))
	e.forward.ServeHTTP(w, r)
}

// direct rewrites the outgoing request URL. A redirect set by a request
// hook wins; otherwise the request goes to its original destination host.
func (e *Engine) direct(req *http.Request) {
	if flow, ok := req.Context().Value(flowContextKey).(*Flow); ok && flow.Redirect != "" {
		if u, err := url.Parse(flow.Redirect); err == nil {
			req.URL = u
			req.Host = u.Host
			return
		}
		e.log.Warn("invalid redirect URL, forwarding to origin",
			zap.String("redirect", flow.Redirect))
	}
	if !req.URL.IsAbs() {
		req.URL.Scheme = e.opts.UpstreamScheme
		req.URL.Host = req.Host
	}
}

// modifyResponse is called by the reverse proxy with the upstream response.
func (e *Engine) modifyResponse(resp *http.Response) error {
	flow, ok := resp.Request.Context().Value(flowContextKey).(*Flow)
	if !ok {
		return nil
	}

	if err := bufferResponseBody(flow, resp, e.opts.MaxBodySize); err != nil {
		// Don't fail the proxy; just mark the body capture as failed.
		flow.Response.Body = nil
		flow.Response.BodyTruncated = true
	}

	flow.Timestamps.ResponseDone = time.Now()
	flow.State = FlowStateComplete

	e.addons.FireResponse(flow)
	e.addons.FireComplete(flow)
	e.store.Update(flow, FlowEventComplete)

	return nil
}

// errorHandler is called by the reverse proxy when the upstream is unreachable.
func (e *Engine) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	flow, ok := r.Context().Value(flowContextKey).(*Flow)
	if ok {
		flow.State = FlowStateError
		flow.Error = err.Error()
		flow.Timestamps.ResponseDone = time.Now()
		e.addons.FireError(flow, err)
		e.store.Update(flow, FlowEventError)
		e.log.Debug("upstream error",
			zap.String("host", flow.Request.Host),
			zap.Error(err))
	}
	http.Error(w, fmt.Sprintf("upstream error: %v", err), http.StatusBadGateway)
}

// newFlow builds a Flow skeleton from the incoming request.
func (e *Engine) newFlow(r *http.Request) *Flow {
	host := r.Host
	fullURL := r.URL.String()
	if r.URL.IsAbs() {
		host = r.URL.Host
	} else {
		u := *r.URL
		u.Scheme = e.opts.UpstreamScheme
		u.Host = host
		fullURL = u.String()
	}

	f := &Flow{
		ID:    uuid.New().String(),
		State: FlowStateActive,
	}
	f.Timestamps.Created = time.Now()
	f.Request = &CapturedRequest{
		Method: r.Method,
		URL:    fullURL,
		// RequestURI keeps the query string; Gemini endpoints carry
		// routing-relevant parameters like ?alt=sse.
		Path:    r.URL.RequestURI(),
		Host:    host,
		Headers: r.Header.Clone(),
		Proto:   r.Proto,
	}
	return f
}

// bufferRequestBody reads up to maxBytes of the request body and stores it on the flow.
func bufferRequestBody(flow *Flow, r *http.Request, maxBytes int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	body, truncated, err := readLimited(r.Body, maxBytes)
	if err != nil {
		return err
	}
	// Replace r.Body so the reverse proxy can still read it.
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))

	flow.Request.Body = body
	flow.Request.BodyTruncated = truncated
	return nil
}

// bufferResponseBody reads up to maxBytes of the response body and stores it on the flow.
func bufferResponseBody(flow *Flow, resp *http.Response, maxBytes int64) error {
	captured := &CapturedResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Proto:      resp.Proto,
	}
	flow.Response = captured

	if resp.Body == nil {
		return nil
	}

	body, truncated, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return err
	}
	// Replace resp.Body so the reverse proxy can still send it.
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	captured.Body = body
	captured.BodyTruncated = truncated
	return nil
}

// readLimited reads at most maxBytes from r, then closes r.
// Returns the bytes read and whether the source had more data (truncated).
func readLimited(r io.ReadCloser, maxBytes int64) ([]byte, bool, error) {
	defer r.Close()
	limit := maxBytes + 1
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > maxBytes {
		return data[:maxBytes], true, nil
	}
	return data, false, nil
}
