// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orders

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/placekeeper/lib/netutil"
)

// StatusError is a non-2xx response from the orders location.
type StatusError struct {
	Location   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orders: fetching %s: HTTP %d: %s", e.Location, e.StatusCode, e.Body)
}

// NewHTTPClient returns a client whose transport negotiates gzip and
// zstd content encoding and decompresses transparently.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: gzhttp.Transport(http.DefaultTransport)}
}

// fetch reads the document at location: an http(s) URL, a file:// URL
// or a plain path.
func fetch(ctx context.Context, client *http.Client, userAgent, location string) ([]byte, error) {
	parsed, err := url.Parse(location)
	if err == nil {
		switch parsed.Scheme {
		case "http", "https":
			return fetchHTTP(ctx, client, userAgent, location)
		case "file":
			return readFile(parsed.Path)
		}
	}
	return readFile(location)
}

func fetchHTTP(ctx context.Context, client *http.Client, userAgent, location string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("orders: building request: %w", err)
	}
	if userAgent != "" {
		request.Header.Set("User-Agent", userAgent)
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("orders: fetching %s: %w", location, err)
	}
	defer response.Body.Close()

	if !netutil.IsSuccess(response.StatusCode) {
		return nil, &StatusError{
			Location:   location,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}
	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("orders: reading %s: %w", location, err)
	}
	return data, nil
}

// readFile reads a local document. Files ending in .zst or .lz4 are
// decompressed.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	var reader io.Reader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("orders: zstd reader for %s: %w", path, err)
		}
		defer decoder.Close()
		reader = decoder
	case ".lz4":
		reader = lz4.NewReader(bytes.NewReader(data))
	default:
		return data, nil
	}

	decompressed, err := netutil.ReadResponse(reader)
	if err != nil {
		return nil, fmt.Errorf("orders: decompressing %s: %w", path, err)
	}
	return decompressed, nil
}
