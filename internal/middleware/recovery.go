package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

// Recovery turns a handler panic into a 500 with the standard failure body.
// The stack goes to the request logger, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			log.Ctx(c.Request.Context()).Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Msg("Handler panicked")
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Failure("Internal server error"))
		}()
		c.Next()
	}
}
