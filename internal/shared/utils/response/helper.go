package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondFieldError answers 400 with a single field-level validation error
func RespondFieldError(c *gin.Context, message string, fieldErr FieldError) {
	RespondJSON(c, "error", http.StatusBadRequest, message, nil, fieldErr)
}

// Abort writes an error envelope and stops the handler chain
func Abort(c *gin.Context, code int, message string) {
	RespondJSON(c, "error", code, message, nil, nil)
	c.Abort()
}
