// Package views holds the server-rendered account pages.
package views

import (
	"embed"
	"html/template"
)

//go:embed *.tmpl
var files embed.FS

// Templates parses every page. Pages are looked up by file name.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"errFor": func(errs map[string]string, field string) string {
			return errs[field]
		},
	}).ParseFS(files, "*.tmpl"))
}
