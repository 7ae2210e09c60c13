package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/hive/idgen"
	"github.com/hazyhaar/hive/kit"
)

// RequestHeader carries the request ID in both directions.
const RequestHeader = "X-Request-ID"

var requestIDs = idgen.Prefixed("req_", idgen.UUIDv7())

// RequestID tags each request with an ID (the incoming X-Request-ID, or a
// fresh one), stores it with the remote address under the kit context keys,
// echoes it in the response and attaches a per-request logger.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestHeader)
			if id == "" || len(id) > 128 {
				id = requestIDs()
			}
			w.Header().Set(RequestHeader, id)

			ctx := kit.WithRequestID(r.Context(), id)
			ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			logger.Debug("shield: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
