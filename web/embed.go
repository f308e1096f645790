// Package web embeds the dashboard page served at the site root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// Assets returns the embedded page assets with dist/ as the root, so files
// are opened as "index.html" rather than "dist/index.html".
func Assets() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
