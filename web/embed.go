// Package web provides the embedded templates, static assets and page
// content of the SmartMarks front-end.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates all:static all:content
var files embed.FS

// TemplatesFS returns the HTML templates with "templates" as the root.
func TemplatesFS() (fs.FS, error) {
	return fs.Sub(files, "templates")
}

// StaticFS returns CSS, JS and images with "static" as the root.
func StaticFS() (fs.FS, error) {
	return fs.Sub(files, "static")
}

// ContentFS returns the Markdown documents with "content" as the root.
func ContentFS() (fs.FS, error) {
	return fs.Sub(files, "content")
}
