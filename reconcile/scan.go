// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"log/slog"

	"github.com/bureau-foundation/placekeeper/lib/orders"
	"github.com/bureau-foundation/placekeeper/lib/palette"
)

// grid is the read side of a canvas snapshot.
type grid interface {
	IndexAt(x, y int) (palette.Index, bool)
}

type selection struct {
	order orders.Order
	found palette.Index
	tier  int
	index int
}

// selectMismatch returns the first order, in tier then list order,
// whose pixel does not already hold the ordered color. Pixels with an
// off-palette color count as mismatches. Orders outside the grid can
// never be satisfied and are skipped. Scanning stops at the first
// mismatch.
func selectMismatch(g grid, set *orders.Set, logger *slog.Logger) (selection, bool) {
	for tierIndex, tier := range set.Tiers() {
		for index, order := range tier {
			current, ok := g.IndexAt(order.X, order.Y)
			if !ok {
				logger.Debug("skipping order outside the canvas", "x", order.X, "y", order.Y, "tier", tierIndex)
				continue
			}
			if current == order.Color {
				continue
			}
			return selection{order: order, found: current, tier: tierIndex, index: index}, true
		}
	}
	return selection{}, false
}
