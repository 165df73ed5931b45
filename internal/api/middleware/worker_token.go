package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hireloop/hireloop/internal/utils"
)

// WorkerToken guards the worker callback routes with a shared secret. Workers
// are launched by us, so a static token distributed at provisioning time is
// sufficient.
func WorkerToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "worker token is not configured",
			})
			return
		}

		got := c.GetHeader("X-Worker-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid worker token",
			})
			return
		}

		c.Next()
	}
}
