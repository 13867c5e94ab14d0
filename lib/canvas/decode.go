// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/placekeeper/lib/netutil"
)

// Decoder downloads a canvas image and decodes it into a Snapshot.
type Decoder struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client

	UserAgent string

	// Width and Height size the resulting snapshot.
	Width  int
	Height int

	Logger *slog.Logger
}

// Decode fetches url without credentials and decodes it as PNG.
func (d *Decoder) Decode(ctx context.Context, url string) (*Snapshot, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("canvas: building request: %w", err)
	}
	if d.UserAgent != "" {
		request.Header.Set("User-Agent", d.UserAgent)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("canvas: fetching %s: %w", url, err)
	}
	defer response.Body.Close()

	if !netutil.IsSuccess(response.StatusCode) {
		return nil, fmt.Errorf("canvas: fetching %s: HTTP %d: %s",
			url, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	data, err := netutil.ReadLimited(response.Body, netutil.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("canvas: reading %s: %w", url, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("canvas: decoding %s: %w", url, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != d.Width || bounds.Dy() != d.Height {
		d.logger().Debug("canvas image size differs from configured canvas",
			"image_width", bounds.Dx(), "image_height", bounds.Dy(),
			"canvas_width", d.Width, "canvas_height", d.Height)
	}
	return FromImage(img, d.Width, d.Height), nil
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
