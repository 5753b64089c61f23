package handlers

import (
	"context"
	"math/big"
	"net/http"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"attendance-backend/attendance"
	"attendance-backend/models"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// Treasury is implemented by payers that hold an on-chain balance.
type Treasury interface {
	Treasury() common.Address
	Balance(ctx context.Context) (*big.Int, error)
}

type EventHandler struct {
	manager       *attendance.Manager
	treasury      Treasury
	payoutTimeout time.Duration
}

// NewEventHandler creates the admin and event handlers. treasury may be nil.
// payoutTimeout bounds one distribution pass.
func NewEventHandler(manager *attendance.Manager, treasury Treasury, payoutTimeout time.Duration) *EventHandler {
	return &EventHandler{
		manager:       manager,
		treasury:      treasury,
		payoutTimeout: payoutTimeout,
	}
}

func (h *EventHandler) InitAdmin(c *gin.Context) {
	caller := callerFrom(c)
	if err := h.manager.InitAdmin(c.Request.Context(), caller); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "admin": caller.Identity()})
}

func (h *EventHandler) SetCode(c *gin.Context) {
	var req models.SetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if !codePattern.MatchString(req.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Code must be 1-32 letters, digits or underscores"})
		return
	}

	if err := h.manager.SetCode(c.Request.Context(), callerFrom(c), req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event code set"})
}

func (h *EventHandler) SetTimeWindow(c *gin.Context) {
	var req models.SetTimeWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.manager.SetTimeWindow(c.Request.Context(), callerFrom(c), *req.Start, *req.End); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Time window set",
		"window":  models.TimeWindow{Start: *req.Start, End: *req.End},
	})
}

func (h *EventHandler) SetRewardAmount(c *gin.Context) {
	var req models.SetRewardAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	amount, err := attendance.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.manager.SetRewardAmount(c.Request.Context(), callerFrom(c), amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reward amount set", "reward_amount": amount.String()})
}

func (h *EventHandler) DistributeRewards(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.payoutTimeout)
	defer cancel()

	report, err := h.manager.DistributeRewards(ctx, callerFrom(c))
	if report == nil {
		respondError(c, err)
		return
	}

	resp := models.DistributionResponse{
		Success:     err == nil,
		Completed:   report.Completed,
		RewardBasis: string(report.Basis),
		Paid:        make([]models.Payout, 0, len(report.Paid)),
		AlreadyPaid: report.AlreadyPaid,
		InFlight:    report.InFlight,
	}
	for _, p := range report.Paid {
		resp.Paid = append(resp.Paid, toPayout(p))
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, models.PayoutFailure{
			Recipient: string(f.Recipient),
			Amount:    f.Amount.String(),
			Reason:    f.Reason,
		})
	}

	if err != nil {
		code := attendance.CodeOf(err)
		resp.Code = string(code)
		resp.Message = err.Error()
		if code == attendance.CodeUnknown {
			logger.Errorf("Distribution failed: %v", err)
			resp.Message = "Internal error"
		}
		c.JSON(statusFor(code), resp)
		return
	}
	resp.Message = "All rewards distributed"
	c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	sum, err := h.manager.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.EventSummary{
		CodeSet:       sum.CodeSet,
		RewardAmount:  sum.RewardAmount.String(),
		RewardBasis:   string(sum.Basis),
		AttendeeCount: sum.Attendees,
		IsDistributed: sum.Distributed,
	}
	if sum.AdminSet {
		admin := string(sum.Admin)
		resp.Admin = &admin
	}
	if sum.Window != nil {
		resp.Window = &models.TimeWindow{Start: sum.Window.Start, End: sum.Window.End}
	}

	// Treasury balance is informational; a chain outage must not hide the event
	if h.treasury != nil {
		resp.Treasury = h.treasury.Treasury().Hex()
		if balance, err := h.treasury.Balance(c.Request.Context()); err == nil {
			resp.TreasuryBalance = balance.String()
		} else {
			logger.Warningf("Failed to get treasury balance: %v", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) GetPayouts(c *gin.Context) {
	records, err := h.manager.Payouts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	payouts := make([]models.Payout, 0, len(records))
	for _, r := range records {
		payouts = append(payouts, toPayout(r))
	}
	c.JSON(http.StatusOK, models.PayoutsResponse{Payouts: payouts, Count: len(payouts)})
}

func toPayout(r attendance.PayoutRecord) models.Payout {
	return models.Payout{
		PaymentID: r.PaymentID,
		Recipient: string(r.Recipient),
		Amount:    r.Amount,
		Status:    string(r.Status),
		Reference: r.Reference,
		LastError: r.LastError,
		PaidAt:    r.PaidAt,
	}
}
