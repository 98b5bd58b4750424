package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/youthforge/forge/internal/auth"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/logging"
)

type ctxKey int

const ctxKeyViewerID ctxKey = iota

func ctxWithViewerID(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, ctxKeyViewerID, viewerID)
}

func viewerIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyViewerID).(string)
	return id
}

// requireViewer verifies the Bearer viewer token and stores the viewer id in
// the request context. Write routes sit behind it.
func requireViewer(secret []byte, r responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			header := req.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				r.writeError(w, common.ErrInvalidToken)
				return
			}
			viewerID, err := auth.ViewerIDFromToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				r.writeError(w, err)
				return
			}
			next.ServeHTTP(w, req.WithContext(ctxWithViewerID(req.Context(), viewerID)))
		})
	}
}

// requestLogger logs one line per request.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			logger.Info(req.Context(), "http request",
				"method", req.Method,
				"path", req.URL.Path,
				"duration", time.Since(start).String())
		})
	}
}
