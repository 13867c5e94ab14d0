// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"bytes"
	"errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMarkerNotFound is returned when a page contains no token after the
// marker.
var ErrMarkerNotFound = errors.New("credential: token marker not found")

// Extract returns the token that follows marker in page, up to the
// next double quote. Inline <script> text is searched first; the raw
// document is the fallback for pages that do not parse as expected.
// The returned slice is a fresh copy.
func Extract(page []byte, marker string) ([]byte, error) {
	if marker == "" {
		return nil, errors.New("credential: empty marker")
	}

	if document, err := html.Parse(bytes.NewReader(page)); err == nil {
		var found []byte
		walkScripts(document, func(text string) bool {
			found = afterMarker([]byte(text), marker)
			return found != nil
		})
		if found != nil {
			return found, nil
		}
	}

	if token := afterMarker(page, marker); token != nil {
		return token, nil
	}
	return nil, ErrMarkerNotFound
}

// walkScripts calls visit with the text of each script element until
// visit returns true.
func walkScripts(n *html.Node, visit func(string) bool) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		var text bytes.Buffer
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				text.WriteString(c.Data)
			}
		}
		if text.Len() > 0 && visit(text.String()) {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walkScripts(c, visit) {
			return true
		}
	}
	return false
}

func afterMarker(data []byte, marker string) []byte {
	start := bytes.Index(data, []byte(marker))
	if start < 0 {
		return nil
	}
	rest := data[start+len(marker):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 {
		return nil
	}
	return bytes.Clone(rest[:end])
}
