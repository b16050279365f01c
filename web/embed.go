// Package web embeds the server-rendered pages and their static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every embedded page template.
func Templates() *template.Template {
	return template.Must(
		template.New("").Funcs(template.FuncMap{
			"inc":      func(i int) int { return i + 1 },
			"selected": selected,
		}).ParseFS(templateFS, "templates/*.html"),
	)
}

// StaticFS serves the embedded static assets.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.FS(sub)
}

// selected reports whether option was the saved answer for question.
func selected(answers map[int]int, question, option int) bool {
	got, ok := answers[question]
	return ok && got == option
}
