package models

// SetCodeRequest sets the event code attendees must present.
type SetCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// SetTimeWindowRequest sets the inclusive check-in window in unix seconds.
type SetTimeWindowRequest struct {
	Start *uint64 `json:"start" binding:"required"`
	End   *uint64 `json:"end" binding:"required"`
}

// SetRewardAmountRequest sets the flat reward. Amount is a base-10 integer string
// so 128-bit values survive JSON clients.
type SetRewardAmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// TimeWindow is the check-in window in unix seconds.
type TimeWindow struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// EventSummary is the public view of the event. The code itself is never returned.
type EventSummary struct {
	Admin           *string     `json:"admin"`
	CodeSet         bool        `json:"code_set"`
	Window          *TimeWindow `json:"window"`
	RewardAmount    string      `json:"reward_amount"`
	RewardBasis     string      `json:"reward_basis"`
	AttendeeCount   int         `json:"attendee_count"`
	IsDistributed   bool        `json:"is_distributed"`
	Treasury        string      `json:"treasury,omitempty"`
	TreasuryBalance string      `json:"treasury_balance,omitempty"`
}
