package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"attendance-backend/attendance"
	"attendance-backend/auth"
	"attendance-backend/models"
)

type CheckinHandler struct {
	manager *attendance.Manager
}

func NewCheckinHandler(manager *attendance.Manager) *CheckinHandler {
	return &CheckinHandler{manager: manager}
}

func (h *CheckinHandler) CheckIn(c *gin.Context) {
	var req models.AttendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	caller := callerFrom(c)
	logger.Infof("Checking in attendee: %s", caller.Identity())

	if err := h.manager.Attend(c.Request.Context(), caller, req.Code); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Successfully checked in to event",
		"address": caller.Identity(),
	})
}

func (h *CheckinHandler) GetAttendees(c *gin.Context) {
	ids, err := h.manager.GetAttendees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	attendees := make([]string, 0, len(ids))
	for _, id := range ids {
		attendees = append(attendees, string(id))
	}
	c.JSON(http.StatusOK, models.AttendeesResponse{Attendees: attendees, Count: len(attendees)})
}

func (h *CheckinHandler) GetAttendance(c *gin.Context) {
	id, err := auth.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	attended, err := h.manager.HasAttended(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := models.Attendance{Address: string(id), IsAttended: attended}
	if !attended {
		c.JSON(http.StatusOK, resp)
		return
	}

	rec, _, err := h.manager.Attendance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.LockedReward = rec.LockedReward.String()
	if rec.Payout != nil {
		p := toPayout(*rec.Payout)
		resp.Payout = &p
	}
	c.JSON(http.StatusOK, resp)
}
