package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appconfig "github.com/openpulse/openpulse-go/pkg/config"
)

// CORSMiddleware configures cross-origin access. The tracking endpoint is
// embedded on arbitrary customer sites, so origins default to permissive;
// deployments narrow them with ALLOWED_ORIGINS.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "X-Requested-With",
		},
		ExposeHeaders: []string{"Content-Type"},
	}

	if len(appconfig.AllowedOrigins) > 0 {
		config.AllowOrigins = appconfig.AllowedOrigins
		config.AllowCredentials = true
	} else {
		config.AllowAllOrigins = true
	}

	return cors.New(config)
}
