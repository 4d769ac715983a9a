// Package classify maps intercepted hosts and paths onto LLM providers
// and API wire formats. Everything here is a pure lookup over static
// tables; unmatched input resolves to a sentinel, never an error.
package classify

import (
	"net"
	"strings"
)

// Provider identifies an upstream LLM API vendor.
type Provider string

const (
	Anthropic  Provider = "anthropic"
	OpenAI     Provider = "openai"
	ChatGPT    Provider = "chatgpt"
	Gemini     Provider = "gemini"
	OpenRouter Provider = "openrouter"
	OpenCode   Provider = "opencode"

	// None means the host does not carry LLM API traffic.
	None Provider = ""
)

// APIFormat is the provider-specific wire shape of an endpoint.
type APIFormat string

const (
	FormatAnthropicMessages APIFormat = "anthropic-messages"
	FormatChatCompletions   APIFormat = "chat-completions"
	FormatResponses         APIFormat = "responses"
	FormatChatGPTBackend    APIFormat = "chatgpt-backend"
	FormatMCP               APIFormat = "mcp"
	FormatGemini            APIFormat = "gemini"
	FormatUnknown           APIFormat = "unknown"
)

// providerRule maps a DNS hostname pattern to a provider. A host matches
// when it equals the pattern or ends with "." + pattern.
type providerRule struct {
	pattern  string
	provider Provider
}

// providerRules is ordered; the first match in declaration order wins.
// Patterns are disjoint in practice, so order only matters as a tie-break.
var providerRules = []providerRule{
	{"api.anthropic.com", Anthropic},
	{"api.openai.com", OpenAI},
	{"chatgpt.com", ChatGPT},
	{"generativelanguage.googleapis.com", Gemini},
	{"models.inference.ai.azure.com", OpenAI},
	{"api.individual.githubcopilot.com", OpenAI},
	{"api.business.githubcopilot.com", OpenAI},
	{"api.enterprise.githubcopilot.com", OpenAI},
	{"openrouter.ai", OpenRouter},
	{"opencode.ai", OpenCode},
}

// ProviderFor returns the provider serving the given host, or None.
// Matching is case-insensitive and ignores any port suffix.
func ProviderFor(host string) Provider {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	for _, r := range providerRules {
		if host == r.pattern || strings.HasSuffix(host, "."+r.pattern) {
			return r.provider
		}
	}
	return None
}

// formatRule maps a path substring to an API format.
type formatRule struct {
	substr string
	format APIFormat
}

// Per-provider format tables, checked in order; a path could in principle
// contain more than one substring, so priority is fixed here.
var (
	anthropicFormats = []formatRule{
		{"/messages", FormatAnthropicMessages},
	}
	openAIFormats = []formatRule{
		{"/chat/completions", FormatChatCompletions},
		{"/responses", FormatResponses},
		{"/backend-api/", FormatChatGPTBackend},
		{"/mcp/", FormatMCP},
	}
	openRouterFormats = []formatRule{
		{"/chat/completions", FormatChatCompletions},
		{"/responses", FormatResponses},
	}
)

// APIFormatFor classifies the wire shape of a request path for a given
// provider. Unmatched input yields FormatUnknown.
func APIFormatFor(path string, provider Provider) APIFormat {
	switch provider {
	case Anthropic:
		return matchFormat(path, anthropicFormats)
	case OpenAI, ChatGPT:
		return matchFormat(path, openAIFormats)
	case OpenRouter, OpenCode:
		return matchFormat(path, openRouterFormats)
	case Gemini:
		// Gemini is not further discriminated by path.
		return FormatGemini
	default:
		return FormatUnknown
	}
}

func matchFormat(path string, rules []formatRule) APIFormat {
	for _, r := range rules {
		if strings.Contains(path, r.substr) {
			return r.format
		}
	}
	return FormatUnknown
}
