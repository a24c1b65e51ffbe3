package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/logging"
)

// RequestID takes X-Request-ID from the request or generates one, echoes it
// back and stores it in the request context for logging.For.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.WithRequestID(c.Request.Context(), c.GetHeader(logging.RequestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(logging.RequestIDHeader, logging.RequestID(ctx))
		c.Next()
	}
}

// AccessLog writes one line per request once the handler chain returns.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		l := logging.For(c.Request.Context(), log)
		switch {
		case status >= http.StatusInternalServerError:
			l.Error("[http][access]", fields...)
		case status >= http.StatusBadRequest:
			l.Warn("[http][access]", fields...)
		default:
			l.Info("[http][access]", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.For(c.Request.Context(), log).Error("[http][panic]", zap.Any("recovered", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, "+logging.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", logging.RequestIDHeader+", Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
