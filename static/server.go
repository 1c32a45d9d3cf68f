package static

import (
	"embed"
	"net/http"
)

//go:embed dist/index.html
var dist embed.FS

// Handler serves the embedded landing page for every path. Invite links
// point here.
func Handler() http.Handler {
	index, err := dist.ReadFile("dist/index.html")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(index)
	})
}
