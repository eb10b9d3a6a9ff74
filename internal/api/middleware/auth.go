package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jwtutil "github.com/Kamin0/CBT-OnlineSystem/pkg/jwt"
)

// RequireRole 역할 스코프 토큰 게이트.
// 토큰 없음/해독 불가/만료 → 401, 역할 불일치 → 403.
// 와일드카드 역할 토큰은 모든 작업을 통과한다.
func RequireRole(jwtManager *jwtutil.JWTManager, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		decision, claims := jwtManager.Authorize(token, requiredRole)

		switch decision {
		case jwtutil.Authorized:
			// 검증 성공 - 사용자 정보를 context에 저장
			c.Set("userID", claims.UserID)
			c.Set("username", claims.Username)
			c.Set("role", claims.Role)
			c.Next()

		case jwtutil.Unauthenticated:
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			c.Abort()

		case jwtutil.Forbidden:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Permission denied",
			})
			c.Abort()
		}
	}
}

// extractBearerToken Authorization 헤더에서 토큰 추출 ("Bearer <token>" 또는 원시 토큰)
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return authHeader
}
