package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

const APIKeyHeader = "x-api-key"

// APIKey rejects requests whose x-api-key header does not match key with 403.
// An empty key disables the check.
func APIKey(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				logger.Warn("rejected request with invalid api key",
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
				)
				utils.RespondError(w, http.StatusForbidden, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
