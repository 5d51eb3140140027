// Package security sets response security headers and flags probing requests.
package security

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"pennypal/internal/log"
)

type HeadersConfig struct {
	CSP                   string
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	CrossOriginResource   string
}

// DefaultHeadersConfig suits a JSON API: nothing may be embedded or executed.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-site",
	}
}

// Headers applies config to every response.
func Headers(config HeadersConfig) gin.HandlerFunc {
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", config.XContentTypeOptions)
		h.Set("X-Frame-Options", config.XFrameOptions)
		h.Set("Referrer-Policy", config.ReferrerPolicy)
		h.Set("Cross-Origin-Resource-Policy", config.CrossOriginResource)
		if config.CSP != "" {
			h.Set("Content-Security-Policy", config.CSP)
		}
		if hsts != "" && c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	".git", ".ssh", "etc/passwd", "cmd.exe", "<script", "union select",
}

// Suspicious reports whether path looks like a scanner probing for files.
func Suspicious(path string) bool {
	p := strings.ToLower(path)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(p, pattern) {
			return true
		}
	}
	return false
}

// Detect rejects probing requests with 404 and logs them.
func Detect(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Discard()
	}
	return func(c *gin.Context) {
		if Suspicious(c.Request.URL.Path) || Suspicious(c.Request.URL.RawQuery) {
			logger.WarnContext(c.Request.Context(), "Suspicious request rejected",
				log.FieldClientIP, c.ClientIP(),
				log.FieldPath, c.Request.URL.Path)
			c.AbortWithStatus(404)
			return
		}
		c.Next()
	}
}
