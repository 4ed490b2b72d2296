package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/rubric-grader/pkg/utils/errors"
	"github.com/kart-io/rubric-grader/pkg/utils/response"
)

// Recovery converts panics into an ErrPanic response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("Panic recovered",
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}
