package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role grants access to the admin API
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"

	// ClaimsKey stores the verified claims in the gin context
	ClaimsKey = "auth_claims"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
}

// Claims carried by admin API tokens
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and its role. issuer is checked when set.
func ParseToken(tokenString string, secret []byte, issuer string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if _, ok := roleRank[Role(claims.Role)]; !ok {
		return nil, errors.New("auth: invalid role")
	}
	return claims, nil
}

// Authenticate rejects requests without a valid bearer token
func Authenticate(logger *slog.Logger, secret []byte, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		claims, err := ParseToken(strings.TrimSpace(tokenString), secret, issuer)
		if err != nil {
			logger.Warn("Rejected admin API token", "error", err, "path", c.Request.URL.Path)
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole allows callers whose role is at least min. Operators may do
// everything viewers may.
func RequireRole(min Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || roleRank[Role(claims.Role)] < roleRank[min] {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified claims, or nil before Authenticate ran
func GetClaims(c *gin.Context) *Claims {
	if v, exists := c.Get(ClaimsKey); exists {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
