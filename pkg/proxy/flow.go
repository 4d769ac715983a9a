package proxy

import (
	"net/http"
	"time"
)

// FlowState describes the current lifecycle stage of a Flow.
type FlowState string

const (
	FlowStateActive   FlowState = "active"
	FlowStateComplete FlowState = "complete"
	FlowStateError    FlowState = "error"
)

// CapturedRequest holds a snapshot of an HTTP request as it entered the
// interception engine, before any redirect was applied.
type CapturedRequest struct {
	Method        string      `json:"method"`
	URL           string      `json:"url"`
	Path          string      `json:"path"`
	Host          string      `json:"host"`
	Headers       http.Header `json:"headers"`
	Body          []byte      `json:"body,omitempty"`
	Proto         string      `json:"proto"`
	BodyTruncated bool        `json:"bodyTruncated,omitempty"`
}

// CapturedResponse holds a snapshot of an HTTP response.
type CapturedResponse struct {
	StatusCode    int         `json:"statusCode"`
	Headers       http.Header `json:"headers"`
	Body          []byte      `json:"body,omitempty"`
	Proto         string      `json:"proto"`
	BodyTruncated bool        `json:"bodyTruncated,omitempty"`
}

// Flow represents one intercepted request/response exchange. It is the
// read/write view handed to request and response hooks.
//
// The engine is the only writer and keeps mutating a flow until its
// complete or error event is published. Store readers polling mid-flight
// may observe a response still being filled in; capture persistence only
// runs from the complete hook and never sees a partial flow.
type Flow struct {
	ID string `json:"id"`

	Request  *CapturedRequest  `json:"request"`
	Response *CapturedResponse `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`

	// Redirect, when set by a request hook, replaces the destination the
	// request is forwarded to. Empty means forward to the original host.
	Redirect string `json:"redirect,omitempty"`

	State FlowState `json:"state"`

	Timestamps struct {
		Created      time.Time `json:"created"`
		RequestDone  time.Time `json:"requestDone"`
		ResponseDone time.Time `json:"responseDone,omitempty"`
	} `json:"timestamps"`
}

// Duration returns elapsed time from flow creation to response completion,
// or to now if the flow is still in-flight.
func (f *Flow) Duration() time.Duration {
	if !f.Timestamps.ResponseDone.IsZero() {
		return f.Timestamps.ResponseDone.Sub(f.Timestamps.Created)
	}
	return time.Since(f.Timestamps.Created)
}

// FlowEventType describes the kind of change that occurred to a flow.
type FlowEventType string

const (
	FlowEventNew      FlowEventType = "new"
	FlowEventComplete FlowEventType = "complete"
	FlowEventError    FlowEventType = "error"
)

// FlowEvent carries a flow change notification to subscribers.
type FlowEvent struct {
	Type FlowEventType `json:"type"`
	Flow *Flow         `json:"flow"`
}
