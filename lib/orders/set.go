// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package orders holds the desired canvas state: tiers of pixel orders,
// processed in priority order.
//
// An orders document is a JSON array of tiers, each an array of
// [x, y, colorIndex] triples. Local documents may carry comments and
// trailing commas. The [Store] refreshes the document periodically and
// publishes each distinct version as an immutable [Set].
package orders

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/placekeeper/lib/palette"
)

// Order is one desired pixel.
type Order struct {
	X     int           `json:"x"`
	Y     int           `json:"y"`
	Color palette.Index `json:"color"`
}

// Tier is an ordered group of orders with equal priority.
type Tier []Order

// Set is an ordered sequence of tiers. A Set is immutable; a refresh
// replaces it wholesale.
type Set struct {
	tiers       []Tier
	count       int
	canonical   []byte
	fingerprint string
}

// NewSet builds a Set from tiers. The tiers are copied.
func NewSet(tiers []Tier) *Set {
	copied := make([]Tier, len(tiers))
	count := 0
	for i, tier := range tiers {
		copied[i] = append(Tier(nil), tier...)
		count += len(tier)
	}

	canonical := canonicalEncoding(copied)
	digest := blake3.Sum256(canonical)
	return &Set{
		tiers:       copied,
		count:       count,
		canonical:   canonical,
		fingerprint: hex.EncodeToString(digest[:]),
	}
}

// Empty returns a Set with no orders.
func Empty() *Set { return NewSet(nil) }

// Tiers returns the tiers in priority order. The result must not be
// modified.
func (s *Set) Tiers() []Tier { return s.tiers }

// Count returns the total number of orders across all tiers.
func (s *Set) Count() int { return s.count }

// Fingerprint returns the hex BLAKE3 digest of the set's canonical
// encoding. Equal sets have equal fingerprints.
func (s *Set) Fingerprint() string { return s.fingerprint }

// Equal reports whether s and other have the same tiers and orders in
// the same order.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	return bytes.Equal(s.canonical, other.canonical)
}

// canonicalEncoding is the compact JSON form of the tiers. Empty tiers
// are kept so that [[]] and [] differ, as they do as documents.
func canonicalEncoding(tiers []Tier) []byte {
	var buffer bytes.Buffer
	buffer.WriteByte('[')
	for i, tier := range tiers {
		if i > 0 {
			buffer.WriteByte(',')
		}
		buffer.WriteByte('[')
		for j, order := range tier {
			if j > 0 {
				buffer.WriteByte(',')
			}
			fmt.Fprintf(&buffer, "[%d,%d,%d]", order.X, order.Y, order.Color)
		}
		buffer.WriteByte(']')
	}
	buffer.WriteByte(']')
	return buffer.Bytes()
}

// Parse decodes an orders document. Comments and trailing commas are
// accepted. An entry with the wrong number of fields, a negative
// coordinate or a color outside the palette rejects the whole document.
func Parse(data []byte) (*Set, error) {
	var raw [][][]int
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("orders: parsing: %w", err)
	}

	tiers := make([]Tier, len(raw))
	for i, rawTier := range raw {
		tier := make(Tier, len(rawTier))
		for j, entry := range rawTier {
			if len(entry) != 3 {
				return nil, fmt.Errorf("orders: tier %d entry %d: want [x, y, color], got %d fields", i, j, len(entry))
			}
			order := Order{X: entry[0], Y: entry[1], Color: palette.Index(entry[2])}
			if order.X < 0 || order.Y < 0 {
				return nil, fmt.Errorf("orders: tier %d entry %d: negative coordinate (%d, %d)", i, j, order.X, order.Y)
			}
			if !order.Color.Valid() {
				return nil, fmt.Errorf("orders: tier %d entry %d: color %d is not in the palette", i, j, entry[2])
			}
			tier[j] = order
		}
		tiers[i] = tier
	}
	return NewSet(tiers), nil
}
