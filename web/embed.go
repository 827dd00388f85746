// Package web holds the dashboard templates and the static assets they load.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html static
var assets embed.FS

// Templates parses every dashboard template.
func Templates() (*template.Template, error) {
	return template.ParseFS(assets, "templates/*.html")
}

// Static returns the assets served under /static/, rooted at that prefix.
func Static() (fs.FS, error) {
	return fs.Sub(assets, "static")
}
