package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/edgeflare/ragapi/pkg/httputil"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a 500 response and logs it with the stack.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				Logger(r.Context()).Error("panic recovered in http handler",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("url", r.URL.String()),
				)
				httputil.Error(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
