// internal/interfaces/http/middleware/logger.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// pollPaths are polled by orchestrators and only logged at debug level
var pollPaths = map[string]struct{}{
	"/health": {},
	"/ready":  {},
}

// Logger logs one structured line per request with its session and user
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		fields := logrus.Fields{
			"request_id":  param.Keys[RequestIDKey],
			"session_id":  param.Keys[SessionIDKey],
			"method":      param.Method,
			"path":        param.Path,
			"status_code": param.StatusCode,
			"latency_ms":  param.Latency.Milliseconds(),
			"client_ip":   param.ClientIP,
			"bytes":       param.BodySize,
		}
		if uid, ok := param.Keys[userIDKey]; ok {
			fields["user_id"] = uid
		}
		entry := logger.WithFields(fields)
		if param.ErrorMessage != "" {
			entry = entry.WithField("error", param.ErrorMessage)
		}

		switch {
		case param.StatusCode >= 500:
			entry.Error("request failed")
		case param.StatusCode >= 400:
			entry.Warn("request rejected")
		default:
			if _, polled := pollPaths[param.Path]; polled {
				entry.Debug("health poll served")
			} else {
				entry.Info("request served")
			}
		}
		return ""
	})
}
