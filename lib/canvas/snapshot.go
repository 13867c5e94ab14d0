// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package canvas downloads the current canvas image and converts it
// into a Snapshot of palette indexes.
package canvas

import (
	"image"

	"github.com/bureau-foundation/placekeeper/lib/palette"
)

// Snapshot is a W×H grid of palette indexes. Pixels whose color is not
// in the palette, or that the source image did not cover, hold
// palette.Unknown. A Snapshot is not modified after construction
// completes and may be shared between goroutines.
type Snapshot struct {
	width  int
	height int
	pixels []palette.Index
}

// NewSnapshot returns a width×height snapshot with every pixel Unknown.
func NewSnapshot(width, height int) *Snapshot {
	pixels := make([]palette.Index, width*height)
	for i := range pixels {
		pixels[i] = palette.Unknown
	}
	return &Snapshot{width: width, height: height, pixels: pixels}
}

// FromImage copies img into a width×height snapshot. The image is
// anchored at its bounds' origin; regions outside it stay Unknown.
func FromImage(img image.Image, width, height int) *Snapshot {
	s := NewSnapshot(width, height)
	bounds := img.Bounds()
	w := min(width, bounds.Dx())
	h := min(height, bounds.Dy())

	switch src := img.(type) {
	case *image.RGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := range w {
				p := row[x*4 : x*4+4]
				if p[3] == 0xFF {
					s.pixels[y*width+x] = palette.FromRGB(p[0], p[1], p[2])
				} else {
					s.pixels[y*width+x] = palette.FromColor(src.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y))
				}
			}
		}
	case *image.NRGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := range w {
				p := row[x*4 : x*4+4]
				s.pixels[y*width+x] = palette.FromRGB(p[0], p[1], p[2])
			}
		}
	case *image.Paletted:
		lookup := make([]palette.Index, len(src.Palette))
		for i, c := range src.Palette {
			lookup[i] = palette.FromColor(c)
		}
		for y := range h {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := range w {
				if int(row[x]) < len(lookup) {
					s.pixels[y*width+x] = lookup[row[x]]
				}
			}
		}
	default:
		for y := range h {
			for x := range w {
				s.pixels[y*width+x] = palette.FromColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	}
	return s
}

// Width returns the snapshot width in pixels.
func (s *Snapshot) Width() int { return s.width }

// Height returns the snapshot height in pixels.
func (s *Snapshot) Height() int { return s.height }

// IndexAt returns the palette index at (x, y). ok is false when the
// coordinate lies outside the snapshot.
func (s *Snapshot) IndexAt(x, y int) (index palette.Index, ok bool) {
	if !s.contains(x, y) {
		return palette.Unknown, false
	}
	return s.pixels[y*s.width+x], true
}

// Set stores index at (x, y). Only for building a snapshot; out of
// range coordinates are ignored.
func (s *Snapshot) Set(x, y int, index palette.Index) {
	if s.contains(x, y) {
		s.pixels[y*s.width+x] = index
	}
}

func (s *Snapshot) contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.width && y < s.height
}
