package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"municipal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests over the limit of their route's bucket
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := getClientIP(c)
		limitType := getRateLimitType(c.Request.Method, c.FullPath())

		result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			logger.GetDefault().LogHTTPError(c, err, http.StatusInternalServerError)
			abort(c, http.StatusInternalServerError, "Rate limit check failed", nil)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath())
			abort(c, http.StatusTooManyRequests, "Rate limit exceeded", gin.H{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
			return
		}

		c.Next()
	}
}

// abort writes the shared response envelope; pkg code does not import the
// internal response package
func abort(c *gin.Context, code int, message string, errs interface{}) {
	body := gin.H{"status": "error", "status_code": code, "message": message}
	if errs != nil {
		body["errors"] = errs
	}
	c.AbortWithStatusJSON(code, body)
}

func getRateLimitType(method, path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/status"):
		return RateLimitTypeHealth

	case strings.HasSuffix(path, "/bookings/export"):
		return RateLimitTypeExport

	// Booking writes compete for capacity locks
	case strings.Contains(path, "/bookings") && method != http.MethodGet:
		return RateLimitTypeBooking

	case method != http.MethodGet:
		return RateLimitTypeManage

	case strings.Contains(path, "/events"),
		strings.Contains(path, "/dashboard"):
		return RateLimitTypePublic

	default:
		return RateLimitTypeDefault
	}
}

// getClientIP extracts the real client IP
func getClientIP(c *gin.Context) string {
	if xForwardedFor := c.GetHeader("X-Forwarded-For"); xForwardedFor != "" {
		ip := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := c.GetHeader("X-Real-IP"); xRealIP != "" && net.ParseIP(xRealIP) != nil {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}
