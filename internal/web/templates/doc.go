// Package templates holds the HTML fragments returned to HTMX requests.
// The *_templ.go files are generated from the .templ sources.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate
