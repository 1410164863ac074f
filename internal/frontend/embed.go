//go:build embed

// Package frontend serves the landing page and client assets. Built with
// -tags embed the www directory is compiled into the binary; otherwise
// Handler returns nil and the caller falls back to the filesystem.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed www/*
var staticFiles embed.FS

func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "www")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
