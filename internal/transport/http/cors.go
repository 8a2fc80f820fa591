package http

import (
	"net/http"
	"strings"
)

// corsMethods are the methods a preflight may be granted; routes decides
// which of them a given path actually serves.
var corsMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// CORS adds CORS headers for a configured origin allow-list. Preflights are
// answered with the methods routes registers for the requested path.
func CORS(allowedOrigins []string, routes *http.ServeMux) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			routes.ServeHTTP(w, r)
			return
		}

		allowedOrigin := allowAll
		if !allowAll {
			_, allowedOrigin = allowed[origin]
		}
		if !allowedOrigin {
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
				return
			}
			routes.ServeHTTP(w, r)
			return
		}

		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			methods := routeMethods(routes, r)
			if len(methods) == 0 {
				writeError(w, http.StatusNotFound, codeNotFound, noRouteMessage(r))
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(append(methods, http.MethodOptions), ", "))
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		routes.ServeHTTP(w, r)
	})
}

// routeMethods lists the methods with a method-qualified pattern for r's path.
func routeMethods(routes *http.ServeMux, r *http.Request) []string {
	var methods []string
	for _, method := range corsMethods {
		_, pattern := routes.Handler(&http.Request{Method: method, Host: r.Host, URL: r.URL})
		if strings.HasPrefix(pattern, method+" ") {
			methods = append(methods, method)
		}
	}
	return methods
}
