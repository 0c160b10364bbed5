package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireForm rejects unsafe requests whose body is not an HTML form post.
func RequireForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || (mediaType != "multipart/form-data" && mediaType != "application/x-www-form-urlencoded") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":    "unsupported_media_type",
						"message": "Content-Type must be multipart/form-data or application/x-www-form-urlencoded",
					},
				})
				return
			}
		}
		c.Next()
	}
}
