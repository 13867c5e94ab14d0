// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package palette maps canvas pixel colors to the compact palette
// indexes used by the placement protocol, and back.
//
// Color keys are "#RRGGBB" strings, uppercase and zero-padded, as
// produced by [PixelToColorKey]. Matching is exact: a color that is not
// in the table has no index, and callers treat it as a mismatch so that
// it gets corrected.
package palette

import (
	"fmt"
	"image/color"
	"strconv"
)

// Index is a palette index as sent in placement requests.
type Index int

// Unknown marks a pixel whose color is not in the palette, or a
// coordinate the snapshot does not cover.
const Unknown Index = -1

// Entry is one palette color.
type Entry struct {
	Index Index
	Key   string
	Name  string
}

var entries = []Entry{
	{2, "#FF4500", "red"},
	{3, "#FFA800", "orange"},
	{4, "#FFD635", "yellow"},
	{6, "#00A368", "dark green"},
	{8, "#7EED56", "light green"},
	{12, "#2450A4", "dark blue"},
	{13, "#3690EA", "blue"},
	{14, "#51E9F4", "light blue"},
	{18, "#811E9F", "dark purple"},
	{19, "#B44AC0", "purple"},
	{23, "#FF99AA", "light pink"},
	{25, "#9C6926", "brown"},
	{27, "#000000", "black"},
	{29, "#898D90", "gray"},
	{30, "#D4D7D9", "light gray"},
	{31, "#FFFFFF", "white"},
}

var (
	byKey   = make(map[string]Index, len(entries))
	byIndex = make(map[Index]Entry, len(entries))
	byRGB   = make(map[uint32]Index, len(entries))
)

func init() {
	for _, e := range entries {
		byKey[e.Key] = e.Index
		byIndex[e.Index] = e
		rgb, err := parseKey(e.Key)
		if err != nil {
			panic(err)
		}
		byRGB[rgb] = e.Index
	}
}

// Entries returns the palette table in index order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// ColorToIndex returns the index for a color key.
func ColorToIndex(key string) (Index, bool) {
	i, ok := byKey[key]
	return i, ok
}

// IndexToName returns the display label of an index. Display only.
func IndexToName(i Index) (string, bool) {
	e, ok := byIndex[i]
	return e.Name, ok
}

// IndexToColorKey returns the color key of an index.
func IndexToColorKey(i Index) (string, bool) {
	e, ok := byIndex[i]
	return e.Key, ok
}

// PixelToColorKey encodes a color sample as "#RRGGBB".
func PixelToColorKey(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// FromRGB returns the index of an exact color, or Unknown.
func FromRGB(r, g, b uint8) Index {
	if i, ok := byRGB[pack(r, g, b)]; ok {
		return i
	}
	return Unknown
}

// FromColor returns the index of a decoded image pixel, or Unknown.
// Channels are compared un-premultiplied; alpha is ignored.
func FromColor(c color.Color) Index {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return FromRGB(n.R, n.G, n.B)
}

// Valid reports whether i is in the palette.
func (i Index) Valid() bool {
	_, ok := byIndex[i]
	return ok
}

// Name returns the display label, or "unknown".
func (i Index) Name() string {
	if name, ok := IndexToName(i); ok {
		return name
	}
	return "unknown"
}

// Color returns the palette color of i, or transparent for Unknown.
func (i Index) Color() color.NRGBA {
	key, ok := IndexToColorKey(i)
	if !ok {
		return color.NRGBA{}
	}
	rgb, _ := parseKey(key)
	return color.NRGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xFF}
}

func parseKey(key string) (uint32, error) {
	if len(key) != 7 || key[0] != '#' {
		return 0, fmt.Errorf("palette: malformed color key %q", key)
	}
	v, err := strconv.ParseUint(key[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("palette: malformed color key %q: %w", key, err)
	}
	return uint32(v), nil
}

func pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
