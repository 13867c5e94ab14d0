// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/bureau-foundation/placekeeper/lib/netutil"
	"github.com/bureau-foundation/placekeeper/lib/secret"
)

// Source produces a fresh bearer token. The caller owns the returned
// buffer.
type Source interface {
	Acquire(ctx context.Context) (*secret.Buffer, error)
}

// PageSource fetches the canvas page over HTTP and extracts the token.
type PageSource struct {
	URL    string
	Marker string

	// CookieFile optionally names a file holding a Cookie header value
	// for a logged-in session.
	CookieFile string

	UserAgent string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (s *PageSource) Acquire(ctx context.Context) (*secret.Buffer, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("credential: building request: %w", err)
	}
	if s.UserAgent != "" {
		request.Header.Set("User-Agent", s.UserAgent)
	}
	if s.CookieFile != "" {
		cookie, err := secret.ReadFile(s.CookieFile)
		if err != nil {
			return nil, fmt.Errorf("credential: reading cookie file: %w", err)
		}
		request.Header.Set("Cookie", cookie.String())
		cookie.Close()
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("credential: fetching %s: %w", s.URL, err)
	}
	defer response.Body.Close()

	if !netutil.IsSuccess(response.StatusCode) {
		return nil, fmt.Errorf("credential: fetching %s: HTTP %d", s.URL, response.StatusCode)
	}
	page, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", s.URL, err)
	}
	return bufferFromPage(page, s.Marker)
}

// BrowserSource loads the canvas page in Chrome and extracts the token
// from the rendered document.
type BrowserSource struct {
	URL    string
	Marker string

	// ControlURL connects to a running browser's DevTools endpoint.
	// Empty launches a local headless Chrome.
	ControlURL string

	// UserDataDir is the profile directory for a launched browser.
	UserDataDir string

	Stealth bool

	// Timeout bounds navigation and load. Zero means 30 seconds.
	Timeout time.Duration

	Logger *slog.Logger
}

func (s *BrowserSource) Acquire(ctx context.Context) (*secret.Buffer, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	controlURL := s.ControlURL
	launched := controlURL == ""
	if launched {
		l := launcher.New().Context(ctx).Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		if s.UserDataDir != "" {
			l = l.UserDataDir(s.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("credential: launching browser: %w", err)
		}
		// Kill rather than Cleanup: Cleanup deletes the profile directory.
		defer l.Kill()
		controlURL = u
		logger.Debug("launched browser for credential", "control_url", controlURL)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("credential: connecting to browser: %w", err)
	}
	if launched {
		defer browser.Close()
	}

	var page *rod.Page
	var err error
	if s.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("credential: opening tab: %w", err)
	}
	defer page.Close()

	if err := page.Context(ctx).Navigate(s.URL); err != nil {
		return nil, fmt.Errorf("credential: navigating to %s: %w", s.URL, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		logger.Warn("page load did not complete, extracting anyway", "url", s.URL, "error", err)
	}
	document, err := page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("credential: reading document: %w", err)
	}
	return bufferFromPage([]byte(document), s.Marker)
}

// FileSource reads the token from a file, trimming whitespace.
type FileSource struct {
	Path string
}

func (s *FileSource) Acquire(ctx context.Context) (*secret.Buffer, error) {
	buffer, err := secret.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	return buffer, nil
}

func bufferFromPage(page []byte, marker string) (*secret.Buffer, error) {
	token, err := Extract(page, marker)
	if err != nil {
		return nil, err
	}
	buffer, err := secret.NewFromBytes(token)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	return buffer, nil
}
