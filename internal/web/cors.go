package web

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns a permissive CORS middleware. Mobile clients call the
// mBaaS from arbitrary origins, so every origin is allowed.
func CORS() Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
