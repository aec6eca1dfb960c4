package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"municipal/internal/shared/config"
	"municipal/internal/shared/utils/response"
	"municipal/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	ctxUsername  = "username"
	ctxUserRole  = "user_role"
	ctxRequestID = "request_id"

	HeaderRequestID = "X-Request-ID"
)

var errTokenType = errors.New("invalid token type")

// JWTAuth requires a valid access token and stores the principal in the context
func JWTAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		principal, err := parseBearer(authHeader, cfg.JWT.Secret)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuth stores the principal when a valid token is present and
// otherwise lets the request through anonymously
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if principal, err := parseBearer(authHeader, cfg.JWT.Secret); err == nil {
				setPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

func parseBearer(authHeader, secret string) (users.Principal, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return users.Principal{}, errors.New("authorization header format must be Bearer {token}")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return users.Principal{}, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return users.Principal{}, errTokenType
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return users.Principal{}, errTokenType
	}

	username, _ := claims["username"].(string)
	if username == "" {
		return users.Principal{}, errors.New("token has no username")
	}
	role, _ := claims["role"].(string)

	return users.Principal{Username: username, Role: users.ParseRole(role)}, nil
}

func setPrincipal(c *gin.Context, p users.Principal) {
	c.Set(ctxUsername, p.Username)
	c.Set(ctxUserRole, string(p.Role))
}

// CurrentPrincipal returns the caller stored by JWTAuth or OptionalAuth
func CurrentPrincipal(c *gin.Context) (users.Principal, bool) {
	username := c.GetString(ctxUsername)
	if username == "" {
		return users.Principal{}, false
	}
	return users.Principal{Username: username, Role: users.Role(c.GetString(ctxUserRole))}, true
}

// RequireRoles allows the request when the caller has any of the roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(ctxUserRole)
		if !exists {
			response.Abort(c, http.StatusUnauthorized, "user role not found in context")
			return
		}

		for _, role := range requiredRoles {
			if userRole.(string) == role {
				c.Next()
				return
			}
		}

		response.Abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// RequireManager admits administrators and editors
func RequireManager() gin.HandlerFunc {
	return RequireRoles(users.ManagerRoles...)
}

// RequestID propagates or assigns a request id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// IssueAccessToken signs an access token for p. Login lives outside this
// service; the helper serves tooling and tests.
func IssueAccessToken(secret string, p users.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"username": p.Username,
		"role":     string(p.Role),
		"type":     "access",
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
