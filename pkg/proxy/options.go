package proxy

const (
	DefaultListenAddr     = ":9270"
	DefaultWebPort        = 9271
	DefaultMaxFlows       = 1000
	DefaultMaxBody        = 8 << 20 // 8 MiB; LLM payloads run large
	DefaultUpstreamScheme = "https"
)

// Options configures the interception engine.
type Options struct {
	// ListenAddr is the address for the intercept HTTP server (e.g. ":9270").
	ListenAddr string

	// WebPort is the port for the web inspection UI. 0 disables it.
	WebPort int

	// MaxFlows is the buffer capacity for the flow store.
	MaxFlows int

	// MaxBodySize is the maximum number of bytes buffered per request/response body.
	MaxBodySize int64

	// UpstreamScheme is the scheme used when forwarding requests whose
	// original scheme was lost at TLS termination. Defaults to https.
	UpstreamScheme string
}

func (o *Options) setDefaults() {
	if o.ListenAddr == "" {
		o.ListenAddr = DefaultListenAddr
	}
	if o.MaxFlows == 0 {
		o.MaxFlows = DefaultMaxFlows
	}
	if o.MaxBodySize == 0 {
		o.MaxBodySize = DefaultMaxBody
	}
	if o.UpstreamScheme == "" {
		o.UpstreamScheme = DefaultUpstreamScheme
	}
}
