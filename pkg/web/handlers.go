package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/llmtap/llmtap/pkg/classify"
	"github.com/llmtap/llmtap/pkg/proxy"
)

type handlers struct {
	engine *proxy.Engine
}

// flowView is a Flow annotated with its LLM classification for display.
type flowView struct {
	*proxy.Flow
	Provider  classify.Provider  `json:"provider,omitempty"`
	APIFormat classify.APIFormat `json:"apiFormat,omitempty"`
}

func newFlowView(f *proxy.Flow) flowView {
	v := flowView{Flow: f}
	if f.Request != nil {
		v.Provider = classify.ProviderFor(f.Request.Host)
		if v.Provider != classify.None {
			v.APIFormat = classify.APIFormatFor(f.Request.Path, v.Provider)
		}
	}
	return v
}

// listFlows serves flows oldest-first; ?limit=N keeps only the newest N.
func (h *handlers) listFlows(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	flows := h.engine.Store().Recent(limit)
	views := make([]flowView, len(flows))
	for i, f := range flows {
		views[i] = newFlowView(f)
	}
	jsonOK(w, views)
}

func (h *handlers) getFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flow := h.engine.Store().Get(id)
	if flow == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	jsonOK(w, newFlowView(flow))
}

func (h *handlers) clearFlows(w http.ResponseWriter, _ *http.Request) {
	h.engine.Store().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getConfig(w http.ResponseWriter, _ *http.Request) {
	opts := h.engine.Options()
	jsonOK(w, map[string]interface{}{
		"listen":         opts.ListenAddr,
		"upstreamScheme": opts.UpstreamScheme,
		"maxFlows":       opts.MaxFlows,
		"maxBodySize":    opts.MaxBodySize,
		"flows":          h.engine.Store().Count(),
	})
}

func jsonOK(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
