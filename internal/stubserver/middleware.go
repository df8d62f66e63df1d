package stubserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/copayhq/copayctl/pkg/tokeninspect"
)

const claimsContextKey = "admin_claims"

// RequireBearer validates the Authorization header and injects the token claims.
func RequireBearer(validator *tokeninspect.Validator) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		header := contextGin.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.missing_bearer"})
			return
		}
		claims, validateErr := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if validateErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.invalid_token"})
			return
		}
		contextGin.Set(claimsContextKey, claims)
		contextGin.Next()
	}
}

// ClaimsFrom retrieves the validated claims injected by RequireBearer.
func ClaimsFrom(contextGin *gin.Context) (*tokeninspect.Claims, bool) {
	value, exists := contextGin.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*tokeninspect.Claims)
	return claims, ok
}
