// Package web embeds the upload and history page served at the site root.
package web

import (
	"embed"
	"fmt"
	"io/fs"
)

const IndexFile = "index.html"

//go:embed dist
var bundle embed.FS

// Dist returns the UI bundle rooted at dist. It fails when the bundle has no index page.
func Dist() (fs.FS, error) {
	sub, err := fs.Sub(bundle, "dist")
	if err != nil {
		return nil, fmt.Errorf("open ui bundle: %w", err)
	}
	if _, err := fs.Stat(sub, IndexFile); err != nil {
		return nil, fmt.Errorf("ui bundle: %w", err)
	}
	return sub, nil
}
