// Package config resolves llmtap configuration from the environment, an
// optional YAML file, and CLI flags.
//
// Loading priority (later wins):
//
//  1. Built-in defaults
//  2. Environment variables (plus .env, if present)
//  3. Config file (llmtap.yml in cwd, or --config path)
//  4. Explicit CLI flags
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/llmtap/llmtap/pkg/capture"
	"github.com/llmtap/llmtap/pkg/proxy"
)

// Environment variables, read once at process start.
const (
	EnvCaptureDir = "LLMTAP_CAPTURE_DIR"
	EnvSource     = "LLMTAP_SOURCE"
	EnvSessionID  = "LLMTAP_SESSION_ID"
	EnvForwardURL = "LLMTAP_FORWARD_URL"
	EnvListen     = "LLMTAP_LISTEN"
)

// DefaultSource tags traffic whose invoking tool did not identify itself.
const DefaultSource = "unknown"

// DefaultFilenames lists the config file names searched in the current
// directory when --config is not given.
var DefaultFilenames = []string{"llmtap.yml", "llmtap.yaml", ".llmtap.yml"}

// Config is the full configuration for llmtap.
type Config struct {
	// Listen is the intercept server address (e.g. ":9270").
	Listen string `yaml:"listen"`

	// WebPort is the port for the web inspection UI. 0 disables it.
	WebPort *int `yaml:"web_port"`

	// NoTUI disables the interactive terminal UI.
	NoTUI bool `yaml:"no_tui"`

	// NoColor disables ANSI colours in log output.
	NoColor bool `yaml:"no_color"`

	// MaxFlows is the buffer capacity for the flow store.
	MaxFlows *int `yaml:"max_flows"`

	// MaxBodySize is the max bytes buffered per request/response body.
	MaxBodySize *int64 `yaml:"max_body_size"`

	// UpstreamScheme is used when the original scheme was lost at TLS
	// termination. Defaults to https.
	UpstreamScheme string `yaml:"upstream_scheme"`

	// CaptureDir is where capture files are written.
	CaptureDir string `yaml:"capture_dir"`

	// Source labels every capture and route with the invoking tool.
	Source string `yaml:"source"`

	// SessionID is an optional opaque token embedded in filenames and
	// route paths.
	SessionID string `yaml:"session_id"`

	// ForwardURL enables routing mode when non-empty.
	ForwardURL string `yaml:"forward_url"`

	// LogLevel is debug|info|warn|error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is json|console.
	LogFormat string `yaml:"log_format"`
}

// FromEnv builds a Config from defaults overlaid with environment
// variables. A .env file in the working directory is honored if present.
func FromEnv() *Config {
	_ = godotenv.Load()

	return &Config{
		Listen:     getEnvOrDefault(EnvListen, ""),
		CaptureDir: getEnvOrDefault(EnvCaptureDir, DefaultCaptureDir()),
		Source:     getEnvOrDefault(EnvSource, DefaultSource),
		SessionID:  os.Getenv(EnvSessionID),
		ForwardURL: os.Getenv(EnvForwardURL),
	}
}

// LoadFile reads and parses a YAML config file from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// FindDefault looks for a config file in dir using DefaultFilenames.
// Returns the path of the first file found, or "" if none exist.
func FindDefault(dir string) string {
	for _, name := range DefaultFilenames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Merge overlays set fields of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Listen != "" {
		c.Listen = other.Listen
	}
	if other.WebPort != nil {
		c.WebPort = other.WebPort
	}
	if other.NoTUI {
		c.NoTUI = true
	}
	if other.NoColor {
		c.NoColor = true
	}
	if other.MaxFlows != nil {
		c.MaxFlows = other.MaxFlows
	}
	if other.MaxBodySize != nil {
		c.MaxBodySize = other.MaxBodySize
	}
	if other.UpstreamScheme != "" {
		c.UpstreamScheme = other.UpstreamScheme
	}
	if other.CaptureDir != "" {
		c.CaptureDir = other.CaptureDir
	}
	if other.Source != "" {
		c.Source = other.Source
	}
	if other.SessionID != "" {
		c.SessionID = other.SessionID
	}
	if other.ForwardURL != "" {
		c.ForwardURL = other.ForwardURL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}

// ToOptions converts the Config into proxy.Options; proxy.New applies
// built-in defaults for anything left unset.
func (c *Config) ToOptions() proxy.Options {
	opts := proxy.Options{
		ListenAddr:     c.Listen,
		UpstreamScheme: c.UpstreamScheme,
	}
	if c.WebPort != nil {
		opts.WebPort = *c.WebPort
	} else {
		opts.WebPort = proxy.DefaultWebPort
	}
	if c.MaxFlows != nil {
		opts.MaxFlows = *c.MaxFlows
	}
	if c.MaxBodySize != nil {
		opts.MaxBodySize = *c.MaxBodySize
	}
	return opts
}

// Identity returns the process-wide provenance values.
func (c *Config) Identity() capture.Identity {
	source := c.Source
	if source == "" {
		source = DefaultSource
	}
	return capture.Identity{Source: source, SessionID: c.SessionID}
}

// DefaultCaptureDir returns the fixed per-user capture directory.
func DefaultCaptureDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".llmtap", "captures")
	}
	return filepath.Join(home, ".llmtap", "captures")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Example returns the canonical example config as a YAML string.
func Example() string {
	return `# llmtap configuration
# All fields are optional; environment variables and CLI flags layer on top.

# Intercept listen address.
listen: ":9270"

# Port for the web inspection UI. Set to 0 to disable.
web_port: 9271

# Disable the interactive terminal UI (log to stdout instead).
no_tui: false

# Disable ANSI colors in log output.
no_color: false

# Maximum number of flows held in memory for the inspection UIs.
max_flows: 1000

# Maximum bytes buffered per request/response body (default: 8388608 = 8 MiB).
max_body_size: 8388608

# Scheme used when forwarding; the original scheme is lost at TLS termination.
upstream_scheme: https

# --- Capture mode ---

# Directory for capture files (default: ~/.llmtap/captures).
# capture_dir: /var/lib/llmtap/captures

# Tool label embedded in every capture and filename.
# source: copilot

# Optional opaque session token.
# session_id: abcd1234

# --- Routing mode ---

# Forwarding proxy base URL. Setting this enables request rewriting
# in the route subcommand.
# forward_url: https://proxy.example

# --- Logging ---
log_level: info
log_format: console
`
}
