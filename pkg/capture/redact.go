package capture

import (
	"net/http"
	"strings"
)

// allowedHeaders is the complete set of exact header names a capture may
// carry. Authorization and API-key headers are excluded by omission, as is
// anything a provider introduces that we have not reviewed.
var allowedHeaders = map[string]struct{}{
	"content-type":         {},
	"content-encoding":     {},
	"accept":               {},
	"user-agent":           {},
	"x-request-id":         {},
	"openai-beta":          {},
	"anthropic-version":    {},
	"openai-processing-ms": {},
}

// allowedHeaderPrefixes admits the provider rate-limit families.
var allowedHeaderPrefixes = []string{
	"x-ratelimit-",
	"anthropic-ratelimit-",
}

// RedactHeaders returns only the allowlisted headers, with original casing
// and values preserved. Multi-valued headers are joined with ", " to keep
// the persisted map shape flat.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if !headerAllowed(name) || len(values) == 0 {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func headerAllowed(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := allowedHeaders[lower]; ok {
		return true
	}
	for _, p := range allowedHeaderPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
