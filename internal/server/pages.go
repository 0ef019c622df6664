package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/workflow"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

func loadPages() (*template.Template, error) {
	return template.ParseFS(webFS, "web/templates/*.html")
}

func staticFS() http.FileSystem {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

func periods() []int {
	out := make([]int, 0, workflow.MaxPeriod)
	for p := workflow.MinPeriod; p <= workflow.MaxPeriod; p++ {
		out = append(out, p)
	}
	return out
}

func page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, gin.H{
			"Title":   title,
			"Page":    name,
			"Roles":   apiclient.Roles,
			"Periods": periods(),
		})
	}
}
