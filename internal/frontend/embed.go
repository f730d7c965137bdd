//go:build embed

// Package frontend serves the browser dashboard. Built with -tags embed the
// static assets ship inside the binary; without the tag Handler returns nil
// and the daemon falls back to serving from disk.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
