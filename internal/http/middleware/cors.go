package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// HeaderIdempotencyReplayed marks a send answered from a stored record.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// CORS admits browser clients from origins. An empty list or one holding
// "*" admits every origin; credentials are never allowed since sessions travel in
// X-Session-Token rather than cookies. Same-origin requests pass untouched.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "If-None-Match",
			HeaderRequestID, HeaderSessionToken, HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{
			HeaderRequestID, "Content-Length", "ETag", "Retry-After", HeaderIdempotencyReplayed,
		},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}
	if len(origins) == 0 || lo.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
