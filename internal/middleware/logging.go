// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/models"
)

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		entry := logrus.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
		} else if c.Writer.Status() >= 500 {
			entry.Error("Server error")
		} else if c.Writer.Status() >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request processed")
		}
	}
}

// AuditLogMiddleware records mutating requests against money-movement routes.
// The request body is restored after reading so downstream handlers (and the
// webhook signature check in particular) see the original bytes.
func AuditLogMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only audit mutations
		if c.Request.Method == "GET" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Snapshot everything before handing off: the gin context is pooled
		// and must not be touched from the goroutine.
		auditLog := models.AuditLog{
			Action:       c.Request.Method + " " + c.Request.URL.Path,
			ResourceType: "http_request",
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			NewValues: models.JSONB{
				"status_code":   c.Writer.Status(),
				"query":         c.Request.URL.RawQuery,
				"response_size": blw.body.Len(),
			},
		}

		if userID, exists := c.Get("user_id"); exists {
			if uid, err := uuid.Parse(userID.(string)); err == nil {
				auditLog.UserID = &uid
			}
		}

		// Record asynchronously so the response is not delayed
		go func() {
			if err := db.Create(&auditLog).Error; err != nil {
				logrus.Errorf("Failed to create audit log: %v", err)
			}
		}()
	}
}
