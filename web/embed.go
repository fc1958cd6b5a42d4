// Package web embeds the page templates and the static assets of the public
// checklist and the back office.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS returns the static assets (scripts and styles).
func StaticFS() fs.FS { return mustSub("static") }

// TemplatesFS returns the HTML templates.
func TemplatesFS() fs.FS { return mustSub("templates") }

// mustSub panics only if the embed directive and the directory names drift
// apart, which the tests catch.
func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(content, dir)
	if err != nil {
		panic("web: " + err.Error())
	}
	return sub
}
