package models

import "github.com/google/uuid"

// Payout is an attendee's reward payment. Status is "pending" until the transfer is confirmed.
type Payout struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Reference string    `json:"reference,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	PaidAt    uint64    `json:"paid_at,omitempty"`
}

// PayoutFailure is a payment that failed during a distribution pass.
type PayoutFailure struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

// DistributionResponse reports one distribution pass.
type DistributionResponse struct {
	Success     bool            `json:"success"`
	Completed   bool            `json:"completed"`
	RewardBasis string          `json:"reward_basis"`
	Paid        []Payout        `json:"paid"`
	AlreadyPaid int             `json:"already_paid"`
	InFlight    int             `json:"in_flight"`
	Failed      []PayoutFailure `json:"failed,omitempty"`
	Message     string          `json:"message,omitempty"`
	Code        string          `json:"code,omitempty"`
}

// PayoutsResponse lists the payout ledger.
type PayoutsResponse struct {
	Payouts []Payout `json:"payouts"`
	Count   int      `json:"count"`
}
