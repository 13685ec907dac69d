package logger

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDMiddleware is the outermost layer: it assigns or propagates
// the request id the rest of the chain logs under. Request logging
// itself lives in the middleware package with the status recorder.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		ctx := WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
