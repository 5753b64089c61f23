package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"attendance-backend/attendance"
)

func statusFor(code attendance.Code) int {
	switch code {
	case attendance.CodeNotAuthorized:
		return http.StatusForbidden
	case attendance.CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case attendance.CodeAdminNotSet, attendance.CodeCodeNotSet, attendance.CodeEndTimeNotSet:
		return http.StatusPreconditionFailed
	case attendance.CodeInvalidCode:
		return http.StatusBadRequest
	case attendance.CodeOutsideWindow, attendance.CodeSessionNotOver:
		return http.StatusUnprocessableEntity
	case attendance.CodeAlreadyInitialized, attendance.CodeAlreadyCheckedIn, attendance.CodeAlreadyDistributed,
		attendance.CodeDistributionBusy:
		return http.StatusConflict
	case attendance.CodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a lifecycle error verbatim, or a generic message for anything else.
func respondError(c *gin.Context, err error) {
	code := attendance.CodeOf(err)
	if code == attendance.CodeUnknown {
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "code": code, "message": "Internal error"})
		return
	}
	c.JSON(statusFor(code), gin.H{"success": false, "code": code, "message": err.Error()})
}
