// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/placekeeper/lib/clock"
)

// Console prints one styled line per notification:
//
//	15:04:05 ▍ Pixel placed on 12, 40! Next pixel at 15:09:08
//
// Colors are used only when the writer is a terminal.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	clock  clock.Clock
	stamp  lipgloss.Style
	styles map[Kind]lipgloss.Style
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer, clk clock.Clock) *Console {
	renderer := lipgloss.NewRenderer(out)
	if !isTerminal(out) {
		renderer.SetColorProfile(termenv.Ascii)
	}

	bar := func(color string) lipgloss.Style {
		return renderer.NewStyle().
			Foreground(lipgloss.Color(color)).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color(color)).
			PaddingLeft(1)
	}

	return &Console{
		out:   out,
		clock: clk,
		stamp: renderer.NewStyle().Faint(true),
		styles: map[Kind]lipgloss.Style{
			Info:    bar("#3690EA"),
			Success: bar("#7EED56"),
			Warning: bar("#FFD635"),
			Failure: bar("#FF4500"),
		},
	}
}

func (c *Console) Notify(n Notification) {
	style, ok := c.styles[n.Kind]
	if !ok {
		style = c.styles[Info]
	}
	line := c.stamp.Render(c.clock.Now().Format("15:04:05")) + " " + style.Render(n.Message)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
