package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolio-chat/internal/service"
)

const visitorClaimsKey = "visitor_claims"

// VisitorSessionMiddleware valida el token del widget y guarda claims en el contexto.
func VisitorSessionMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := sessions.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(visitorClaimsKey, claims)
		c.Next()
	}
}

// GetVisitorClaims obtiene los claims del visitante desde el contexto.
func GetVisitorClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(visitorClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
