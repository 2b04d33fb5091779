package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
)

// NotImplemented returns a handler that always responds 501 with the
// not_implemented error kind, for endpoints whose backing collaborator
// (YouTube transcript extraction, the Q&A answer engine, account activity
// history) is out of scope.
func NotImplemented(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(models.KindHTTPStatus(models.KindNotImplemented),
			models.NewEnvelope(models.KindNotImplemented, feature+" is not implemented in this deployment"))
	}
}
