package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultCSP = "default-src 'none'; frame-ancestors 'none'"
	// Account pages post forms to themselves and show uploaded avatars.
	pageCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; form-action 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'"
	// Stored avatars are never documents; anything that renders as one is inert.
	imageCSP = "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'; sandbox"
	// Swagger UI page needs CDN assets + inline bootstrap script/style.
	swaggerCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; connect-src 'self'; img-src 'self' data: https:; font-src 'self' https://unpkg.com data:; style-src 'self' 'unsafe-inline' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com"
)

// SecurityHeaders sets the hardening headers. imagesPrefix is the public path
// avatars are served from.
func SecurityHeaders(hsts bool, imagesPrefix string) gin.HandlerFunc {
	imagesPrefix = "/" + strings.Trim(imagesPrefix, "/") + "/"

	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("X-XSS-Protection", "0")
		if hsts {
			c.Header("Strict-Transport-Security", "max-age=31536000")
		}

		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/docs"):
			c.Header("Content-Security-Policy", swaggerCSP)
		case strings.HasPrefix(path, imagesPrefix):
			c.Header("Content-Security-Policy", imageCSP)
		case strings.HasPrefix(path, "/Account"):
			c.Header("Content-Security-Policy", pageCSP)
		default:
			c.Header("Content-Security-Policy", defaultCSP)
		}
		c.Next()
	}
}
