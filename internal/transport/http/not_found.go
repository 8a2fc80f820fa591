package http

import (
	"fmt"
	"net/http"
)

// NotFoundHandler answers unrouted requests with a JSON 404 naming the route.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, noRouteMessage(r))
	})
}

func noRouteMessage(r *http.Request) string {
	return fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)
}
