package models

// AttendRequest is an attendee check-in.
type AttendRequest struct {
	Code string `json:"code" binding:"required"`
}

// Attendance describes one identity's check-in state.
type Attendance struct {
	Address      string  `json:"address"`
	IsAttended   bool    `json:"is_attended"`
	LockedReward string  `json:"locked_reward,omitempty"`
	Payout       *Payout `json:"payout,omitempty"`
}

// AttendeesResponse lists attendees in check-in order.
type AttendeesResponse struct {
	Attendees []string `json:"attendees"`
	Count     int      `json:"count"`
}
