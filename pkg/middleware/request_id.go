package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/spaghetti-software-inc/ninjapivot/pkg/requestid"
)

// RequestID resolves the request ID for each HTTP request and injects it
// into the request context. The x-request-id header wins, then any ID chi's
// own middleware already generated, then a freshly generated UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("x-request-id")

		if reqID == "" {
			reqID = middleware.GetReqID(r.Context())
		}

		if reqID == "" {
			reqID = requestid.Generate()
		}

		ctx := requestid.ToContext(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
