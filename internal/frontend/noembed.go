//go:build !embed

// Package frontend serves the landing page and client assets. Built with
// -tags embed the www directory is compiled into the binary; otherwise
// Handler returns nil and the caller falls back to the filesystem.
package frontend

import "net/http"

func Handler() http.Handler {
	return nil
}
