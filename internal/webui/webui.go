// Package webui embeds the browser chat page.
package webui

import "embed"

//go:embed static/*
var staticFS embed.FS

// Asset returns the contents of one embedded file.
func Asset(name string) ([]byte, error) {
	return staticFS.ReadFile("static/" + name)
}
