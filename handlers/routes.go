package handlers

import (
	"github.com/gin-gonic/gin"
)

// Register mounts every attendance route on api.
func Register(api *gin.RouterGroup, events *EventHandler, checkins *CheckinHandler, sigs *Signatures) {
	// Admin routes
	admin := api.Group("/admin")
	{
		admin.POST("/init", sigs.Require("init_admin"), events.InitAdmin)
		admin.PUT("/code", sigs.Require("set_code"), events.SetCode)
		admin.PUT("/window", sigs.Require("set_time_window"), events.SetTimeWindow)
		admin.PUT("/reward", sigs.Require("set_reward_amount"), events.SetRewardAmount)
		admin.POST("/distribute", sigs.Require("distribute_rewards"), events.DistributeRewards)
	}

	// Event routes
	api.GET("/event", events.GetEvent)
	api.GET("/payouts", events.GetPayouts)

	// Checkin routes
	api.POST("/attend", sigs.Require("attend"), checkins.CheckIn)
	api.GET("/attendees", checkins.GetAttendees)
	api.GET("/attendees/:address", checkins.GetAttendance)
}
