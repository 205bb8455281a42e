package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse is the envelope for successful mutations.
type SuccessResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message,omitempty"`
	Issue   interface{} `json:"issue,omitempty"`
}

// ErrorResponse is the envelope for every failure.
type ErrorResponse struct {
	Success bool        `json:"success" example:"false"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// RespondJSON sends payload as-is.
func RespondJSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// RespondIssue sends {success:true, message?, issue}.
func RespondIssue(c *gin.Context, status int, issue interface{}, message string) {
	RespondJSON(c, status, SuccessResponse{Success: true, Message: message, Issue: issue})
}

// RespondMessage sends {success:true, message}.
func RespondMessage(c *gin.Context, status int, message string) {
	RespondJSON(c, status, SuccessResponse{Success: true, Message: message})
}

// RespondError sends {success:false, error, details?} and aborts the chain.
func RespondError(c *gin.Context, status int, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: message, Details: details})
}

// RespondValidationError reports field level binding failures.
func RespondValidationError(c *gin.Context, details map[string]string) {
	RespondError(c, http.StatusBadRequest, "Validation failed", details)
}

// RespondBadRequest reports a failure with the raw error message.
func RespondBadRequest(c *gin.Context, err error) {
	RespondError(c, http.StatusBadRequest, err.Error(), nil)
}

// RespondNotFoundError reports a missing resource, e.g. "Issue not found".
func RespondNotFoundError(c *gin.Context, resourceName string) {
	RespondError(c, http.StatusNotFound, resourceName+" not found", nil)
}

// RespondInternalServerError reports an unexpected failure with the raw error message.
func RespondInternalServerError(c *gin.Context, err error) {
	RespondError(c, http.StatusInternalServerError, err.Error(), nil)
}

// RespondTooManyRequests reports a rate limit hit.
func RespondTooManyRequests(c *gin.Context, retryAfterSeconds float64) {
	RespondError(c, http.StatusTooManyRequests, "rate limit exceeded", gin.H{"retryAfter": retryAfterSeconds})
}
