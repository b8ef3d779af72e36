package middleware

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/renewly/renewly/internal/errors"
)

// ErrorHandler middleware handles error responses
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			c.JSON(ierr.HTTPStatusFromErr(err), ierr.NewErrorResponse(err))
		}
	}
}
