// Package route implements routing mode: every intercepted request is
// redirected through a separate forwarding proxy, with the tool source and
// session id embedded as a provenance prefix in the URL path. The
// forwarding proxy owns redaction, logging, and upstream dispatch; this
// mode inspects nothing.
package route

import (
	"strings"

	"github.com/llmtap/llmtap/pkg/capture"
	"github.com/llmtap/llmtap/pkg/proxy"
)

// Addon rewrites request destinations to the forwarding proxy. With no
// forwarding URL configured it is a no-op for every flow; direct
// forwarding stays the engine's default, not ours.
type Addon struct {
	base     string
	identity capture.Identity
}

// NewAddon creates a routing addon. An empty forwardURL disables rewriting.
func NewAddon(forwardURL string, id capture.Identity) *Addon {
	return &Addon{
		base:     strings.TrimSuffix(forwardURL, "/"),
		identity: id,
	}
}

// Enabled reports whether a forwarding URL is configured.
func (a *Addon) Enabled() bool { return a.base != "" }

// OnRequest redirects the flow to
// {base}/{source}[/{sessionId}]{originalPath}. Body and headers are left
// untouched.
func (a *Addon) OnRequest(flow *proxy.Flow) {
	if a.base == "" || flow.Request == nil {
		return
	}

	var b strings.Builder
	b.WriteString(a.base)
	b.WriteByte('/')
	b.WriteString(a.identity.Source)
	if a.identity.SessionID != "" {
		b.WriteByte('/')
		b.WriteString(a.identity.SessionID)
	}
	b.WriteString(flow.Request.Path)

	flow.Redirect = b.String()
}
