// Package middleware provides the gin middleware chain of the grader API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/rubric-grader/pkg/id"
	"github.com/kart-io/rubric-grader/pkg/utils/response"
)

// HeaderXRequestID is the request id header.
const HeaderXRequestID = "X-Request-ID"

// RequestID reuses the inbound X-Request-ID or generates a ULID, and echoes it
// in the response header and the gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.NewRequestID()
		}

		c.Set(response.ContextKeyRequestID, requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id stored by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(response.ContextKeyRequestID)
}
