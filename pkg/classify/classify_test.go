package classify

import "testing"

func TestProviderFor(t *testing.T) {
	t.Run("exact_match", func(t *testing.T) {
		if got := ProviderFor("api.anthropic.com"); got != Anthropic {
			t.Fatalf("expected anthropic, got %q", got)
		}
	})

	t.Run("suffix_match", func(t *testing.T) {
		if got := ProviderFor("eu.api.anthropic.com"); got != Anthropic {
			t.Fatalf("expected anthropic for subdomain, got %q", got)
		}
	})

	t.Run("case_insensitive", func(t *testing.T) {
		if got := ProviderFor("API.ANTHROPIC.COM"); got != Anthropic {
			t.Fatalf("expected anthropic for upper-case host, got %q", got)
		}
	})

	t.Run("port_is_ignored", func(t *testing.T) {
		if got := ProviderFor("api.openai.com:443"); got != OpenAI {
			t.Fatalf("expected openai for host:port, got %q", got)
		}
	})

	t.Run("substring_is_not_a_match", func(t *testing.T) {
		// Ends with the pattern text but not with "." + pattern.
		if got := ProviderFor("evilapi.anthropic.com.example.net"); got != None {
			t.Fatalf("expected none, got %q", got)
		}
		if got := ProviderFor("notchatgpt.com"); got != None {
			t.Fatalf("expected none for lookalike host, got %q", got)
		}
	})

	t.Run("unknown_host", func(t *testing.T) {
		if got := ProviderFor("example.com"); got != None {
			t.Fatalf("expected none, got %q", got)
		}
	})

	t.Run("host_table", func(t *testing.T) {
		cases := map[string]Provider{
			"chatgpt.com":                        ChatGPT,
			"generativelanguage.googleapis.com":  Gemini,
			"models.inference.ai.azure.com":      OpenAI,
			"api.individual.githubcopilot.com":   OpenAI,
			"api.business.githubcopilot.com":     OpenAI,
			"api.enterprise.githubcopilot.com":   OpenAI,
			"openrouter.ai":                      OpenRouter,
			"opencode.ai":                        OpenCode,
		}
		for host, want := range cases {
			if got := ProviderFor(host); got != want {
				t.Errorf("ProviderFor(%q) = %q, want %q", host, got, want)
			}
		}
	})
}

func TestAPIFormatFor(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		provider Provider
		want     APIFormat
	}{
		{"anthropic_messages", "/v1/messages", Anthropic, FormatAnthropicMessages},
		{"anthropic_other", "/v1/complete", Anthropic, FormatUnknown},
		{"openai_chat_completions", "/v1/chat/completions", OpenAI, FormatChatCompletions},
		{"openai_responses", "/v1/responses", OpenAI, FormatResponses},
		{"chatgpt_backend", "/backend-api/conversation", ChatGPT, FormatChatGPTBackend},
		{"chatgpt_mcp", "/mcp/tools", ChatGPT, FormatMCP},
		{"openai_other", "/v1/embeddings", OpenAI, FormatUnknown},
		{"openrouter_chat", "/api/v1/chat/completions", OpenRouter, FormatChatCompletions},
		{"opencode_responses", "/v1/responses", OpenCode, FormatResponses},
		{"openrouter_backend_not_matched", "/backend-api/x", OpenRouter, FormatUnknown},
		{"gemini_always_gemini", "/v1beta/models/gemini-pro:generateContent", Gemini, FormatGemini},
		{"none_provider", "/v1/chat/completions", None, FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := APIFormatFor(tc.path, tc.provider); got != tc.want {
				t.Fatalf("APIFormatFor(%q, %q) = %q, want %q", tc.path, tc.provider, got, tc.want)
			}
		})
	}
}
