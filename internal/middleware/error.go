package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

// ErrorHandler renders the last error attached with c.Error when the handler
// wrote nothing itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
