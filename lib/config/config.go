// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted by [Load].
const EnvConfigPath = "PLACEKEEPER_CONFIG"

// Credential source names.
const (
	SourcePage    = "page"
	SourceBrowser = "browser"
	SourceFile    = "file"
)

// Config is the master configuration.
type Config struct {
	Canvas     CanvasConfig     `yaml:"canvas"`
	Endpoints  EndpointsConfig  `yaml:"endpoints"`
	Channel    ChannelConfig    `yaml:"channel"`
	Client     ClientConfig     `yaml:"client"`
	Timing     TimingConfig     `yaml:"timing"`
	Credential CredentialConfig `yaml:"credential"`
	Status     StatusConfig     `yaml:"status"`
}

// CanvasConfig describes the remote canvas.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Index is the canvasIndex sent with every placement.
	Index int `yaml:"index"`
}

// EndpointsConfig holds remote locations.
type EndpointsConfig struct {
	// Page is fetched to scrape the bearer token.
	Page string `yaml:"page"`

	// Realtime is the websocket endpoint announcing canvas frames.
	Realtime string `yaml:"realtime"`

	// Mutation receives placement requests.
	Mutation string `yaml:"mutation"`

	// Orders is an http(s) URL, a file:// URL or a local path.
	Orders string `yaml:"orders"`
}

// ChannelConfig scopes the realtime subscription.
type ChannelConfig struct {
	TeamOwner string `yaml:"team_owner"`
	Category  string `yaml:"category"`
	Tag       string `yaml:"tag"`
}

// ClientConfig holds the client-identifying headers the remote
// service expects.
type ClientConfig struct {
	Origin     string `yaml:"origin"`
	Referer    string `yaml:"referer"`
	ClientName string `yaml:"client_name"`
	UserAgent  string `yaml:"user_agent"`
}

// TimingConfig holds every delay the agent uses.
type TimingConfig struct {
	OrdersRefresh    time.Duration `yaml:"orders_refresh"`
	AcquireRetry     time.Duration `yaml:"acquire_retry"`
	ParseRetry       time.Duration `yaml:"parse_retry"`
	IdleRecheck      time.Duration `yaml:"idle_recheck"`
	CooldownMargin   time.Duration `yaml:"cooldown_margin"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// CredentialConfig selects how the bearer token is obtained.
type CredentialConfig struct {
	// Source is "page", "browser" or "file".
	Source string `yaml:"source"`

	// Marker precedes the quoted token in the page source.
	Marker string `yaml:"marker"`

	// CookieFile holds a Cookie header value sent with the page
	// request (page source only).
	CookieFile string `yaml:"cookie_file"`

	// TokenFile holds the token itself (file source only).
	TokenFile string `yaml:"token_file"`

	// BrowserControlURL connects to an already running Chrome. Empty
	// launches a local headless Chrome (browser source only).
	BrowserControlURL string `yaml:"browser_control_url"`

	// BrowserUserDataDir is the Chrome profile carrying the login
	// session (browser source only).
	BrowserUserDataDir string `yaml:"browser_user_data_dir"`

	// Stealth applies go-rod/stealth evasions to the browser page.
	Stealth bool `yaml:"stealth"`

	// ReacquireOnReject re-runs the source when a placement is
	// rejected with 401 or 403.
	ReacquireOnReject bool `yaml:"reacquire_on_reject"`
}

// StatusConfig controls the optional status endpoint.
type StatusConfig struct {
	// Listen is a TCP address such as "127.0.0.1:8089". Empty disables
	// the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the observed-deployment configuration.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{Width: 1000, Height: 1000, Index: 0},
		Endpoints: EndpointsConfig{
			Page:     "https://www.reddit.com/r/place/",
			Realtime: "wss://gql-realtime-2.reddit.com/query",
			Mutation: "https://gql-realtime-2.reddit.com/query",
			Orders:   "https://raw.githubusercontent.com/ForsenPlace/Orders/main/orders.json",
		},
		Channel: ChannelConfig{TeamOwner: "AFD2022", Category: "CANVAS", Tag: "0"},
		Client: ClientConfig{
			Origin:     "https://hot-potato.reddit.com",
			Referer:    "https://hot-potato.reddit.com/",
			ClientName: "mona-lisa",
			UserAgent:  "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
		},
		Timing: TimingConfig{
			OrdersRefresh:    5 * time.Minute,
			AcquireRetry:     15 * time.Second,
			ParseRetry:       15 * time.Second,
			IdleRecheck:      30 * time.Second,
			CooldownMargin:   3 * time.Second,
			HandshakeTimeout: 30 * time.Second,
			RequestTimeout:   30 * time.Second,
		},
		Credential: CredentialConfig{
			Source:            SourcePage,
			Marker:            `"accessToken":"`,
			ReacquireOnReject: true,
		},
	}
}

// Load reads the file named by PLACEKEEPER_CONFIG, or returns Default
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, expands path variables and
// validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Endpoints.Orders = expand(c.Endpoints.Orders)
	c.Credential.CookieFile = expand(c.Credential.CookieFile)
	c.Credential.TokenFile = expand(c.Credential.TokenFile)
	c.Credential.BrowserUserDataDir = expand(c.Credential.BrowserUserDataDir)
}

// expand substitutes ${VAR} and ${VAR:-default}.
func expand(s string) string {
	return os.Expand(s, func(name string) string {
		if key, fallback, ok := strings.Cut(name, ":-"); ok {
			if value := os.Getenv(key); value != "" {
				return value
			}
			return fallback
		}
		return os.Getenv(name)
	})
}

// Validate checks structural constraints. All problems are reported
// together.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		add("canvas: width and height must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.Index < 0 {
		add("canvas: index must not be negative, got %d", c.Canvas.Index)
	}

	for name, raw := range map[string]string{
		"endpoints.page":     c.Endpoints.Page,
		"endpoints.realtime": c.Endpoints.Realtime,
		"endpoints.mutation": c.Endpoints.Mutation,
	} {
		if raw == "" {
			add("%s is required", name)
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			add("%s: %v", name, err)
		}
	}
	if c.Endpoints.Orders == "" {
		add("endpoints.orders is required")
	}

	if c.Channel.TeamOwner == "" || c.Channel.Category == "" {
		add("channel: team_owner and category are required")
	}

	for name, d := range map[string]time.Duration{
		"orders_refresh":    c.Timing.OrdersRefresh,
		"acquire_retry":     c.Timing.AcquireRetry,
		"parse_retry":       c.Timing.ParseRetry,
		"idle_recheck":      c.Timing.IdleRecheck,
		"handshake_timeout": c.Timing.HandshakeTimeout,
		"request_timeout":   c.Timing.RequestTimeout,
	} {
		if d <= 0 {
			add("timing.%s must be positive, got %v", name, d)
		}
	}
	if c.Timing.CooldownMargin < 0 {
		add("timing.cooldown_margin must not be negative, got %v", c.Timing.CooldownMargin)
	}

	switch c.Credential.Source {
	case SourcePage:
		if c.Credential.Marker == "" {
			add("credential.marker is required for the page source")
		}
	case SourceBrowser:
		if c.Credential.Marker == "" {
			add("credential.marker is required for the browser source")
		}
	case SourceFile:
		if c.Credential.TokenFile == "" {
			add("credential.token_file is required for the file source")
		}
	default:
		add("credential.source must be %q, %q or %q, got %q", SourcePage, SourceBrowser, SourceFile, c.Credential.Source)
	}

	return errors.Join(problems...)
}
