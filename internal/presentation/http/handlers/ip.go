package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// GetIPAddress extracts the client IP from proxy headers in priority order:
// cf-connecting-ip (already validated by Cloudflare), then the first entry of
// x-forwarded-for, then x-real-ip. Returns "" when no header yields an IP.
func GetIPAddress(c *gin.Context) string {
	if cfIP := strings.TrimSpace(c.GetHeader("cf-connecting-ip")); cfIP != "" {
		return cfIP
	}

	if forwarded := c.GetHeader("x-forwarded-for"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}

	if realIP := c.GetHeader("x-real-ip"); realIP != "" {
		return realIP
	}

	return ""
}
