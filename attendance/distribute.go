package attendance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"attendance-backend/store"
)

// RewardBasis selects the amount paid to each attendee at distribution.
type RewardBasis string

const (
	// BasisCurrent pays the reward amount configured at distribution time.
	BasisCurrent RewardBasis = "current"
	// BasisLocked pays the amount recorded when the attendee checked in.
	BasisLocked RewardBasis = "locked"
)

// ParseRewardBasis validates a basis name.
func ParseRewardBasis(s string) (RewardBasis, error) {
	switch b := RewardBasis(s); b {
	case BasisCurrent, BasisLocked:
		return b, nil
	}
	return "", fmt.Errorf("unknown reward basis %q", s)
}

// paymentNamespace seeds deterministic payment IDs.
var paymentNamespace = uuid.MustParse("5b0f3c8e-2f1d-4c53-9a51-7d1e3f0a6b24")

// PaymentID is the idempotency key of the reward payment to id.
func PaymentID(id Identity) uuid.UUID {
	return uuid.NewSHA1(paymentNamespace, []byte(id))
}

// DefaultPayoutLease is how long a distribution pass owns the attendees it claimed.
const DefaultPayoutLease = 10 * time.Minute

// Payment is a single reward transfer.
type Payment struct {
	ID        uuid.UUID
	Recipient Identity
	Amount    *big.Int
}

// Payer transfers rewards.
type Payer interface {
	// Pay transfers p.Amount to p.Recipient and returns the transfer reference (e.g. a
	// tx hash). record is called with the reference before anything is submitted; if it
	// fails, nothing may be sent.
	Pay(ctx context.Context, p Payment, record func(ref string) error) (string, error)

	// Settled reports whether the transfer identified by ref completed. false with a
	// nil error means it did not and the payment may be sent again.
	Settled(ctx context.Context, ref string) (bool, error)
}

// PayoutStatus is the state of a payout:<id> record.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// PayoutRecord is one attendee's entry in the payout ledger. A pending record is
// owned by the pass named in ClaimedBy until ClaimedUntil.
type PayoutRecord struct {
	PaymentID    uuid.UUID    `json:"payment_id"`
	Recipient    Identity     `json:"recipient"`
	Amount       string       `json:"amount"`
	Status       PayoutStatus `json:"status"`
	Reference    string       `json:"reference,omitempty"`
	ClaimedBy    string       `json:"claimed_by,omitempty"`
	ClaimedUntil uint64       `json:"claimed_until,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	PaidAt       uint64       `json:"paid_at,omitempty"`
}

// PayoutFailure describes a payment attempt that failed during this pass.
type PayoutFailure struct {
	Recipient Identity
	Amount    *big.Int
	Reason    string
}

// DistributionReport summarizes one DistributeRewards call.
type DistributionReport struct {
	Basis       RewardBasis
	Paid        []PayoutRecord
	AlreadyPaid int
	InFlight    int
	Failed      []PayoutFailure
	Completed   bool
}

var errClaimLost = errors.New("payout claimed by another distribution")

// DistributeRewards pays every attendee that has not been paid yet.
//
// Attendees are claimed in one store transaction before any payer call, so concurrent
// passes (in this process or another one sharing the store) never pay the same
// attendee twice. The transfer reference is stored before the transfer is sent; a
// later pass that finds a reference asks the payer whether it settled instead of
// paying again. When every attendee is paid the distribution flag is set and further
// calls fail with ErrAlreadyDistributed. If any payment fails the call returns
// ErrPaymentFailed and a later call retries only the unpaid attendees. Attendees held
// by a live pass are skipped and reported with ErrDistributionBusy.
func (m *Manager) DistributeRewards(ctx context.Context, caller Caller) (*DistributionReport, error) {
	report := &DistributionReport{Basis: m.basis}
	pass := uuid.NewString()

	plan, err := m.claimPayouts(ctx, caller, pass, report)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, claim := range plan {
		rec, err := m.settle(ctx, pass, claim)
		if err != nil {
			amount, _ := new(big.Int).SetString(claim.Amount, 10)
			logger.Warningf("Reward payment of %s to %s failed: %v", claim.Amount, claim.Recipient, err)
			report.Failed = append(report.Failed, PayoutFailure{Recipient: claim.Recipient, Amount: amount, Reason: err.Error()})
			errs = append(errs, fmt.Errorf("pay %s: %w", claim.Recipient, err))
			m.release(ctx, pass, claim.Recipient, err)
			continue
		}
		report.Paid = append(report.Paid, rec)
		logger.Infof("Distributed %s to %s (ref %s)", rec.Amount, rec.Recipient, rec.Reference)
	}

	if len(errs) > 0 {
		return report, errors.Join(append([]error{ErrPaymentFailed}, errs...)...)
	}

	err = m.store.Update(ctx, func(tx store.Tx) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if st.Distributed {
			return nil
		}
		for _, id := range st.Attendees {
			rec, err := getPayout(ctx, tx, id)
			if err != nil {
				return err
			}
			if rec == nil || rec.Status != PayoutPaid {
				return ErrDistributionBusy
			}
		}
		st.Distributed = true
		return st.save(ctx, tx, slotDistributed)
	})
	if err != nil {
		return report, err
	}

	report.Completed = true
	logger.Infof("All rewards distributed (%d paid now, %d earlier)", len(report.Paid), report.AlreadyPaid)
	return report, nil
}

// claimPayouts checks the preconditions and takes ownership of every unpaid attendee
// that no live pass holds, all in one transaction.
func (m *Manager) claimPayouts(ctx context.Context, caller Caller, pass string, report *DistributionReport) ([]PayoutRecord, error) {
	var plan []PayoutRecord
	err := m.store.Update(ctx, func(tx store.Tx) error {
		plan, report.AlreadyPaid, report.InFlight = nil, 0, 0

		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := st.requireAdmin(caller); err != nil {
			return err
		}
		now := m.clock.Now()
		if err := st.checkDistributable(now); err != nil {
			return err
		}

		current := st.RewardAmount()
		for _, id := range st.Attendees {
			rec, err := getPayout(ctx, tx, id)
			if err != nil {
				return err
			}
			switch {
			case rec == nil:
				rec = &PayoutRecord{PaymentID: PaymentID(id), Recipient: id, Status: PayoutPending}
			case rec.Status == PayoutPaid:
				report.AlreadyPaid++
				continue
			case rec.ClaimedBy != "" && now < rec.ClaimedUntil:
				report.InFlight++
				continue
			}

			// An amount already sent under a reference must not change.
			if rec.Reference == "" {
				amount, err := m.amountFor(ctx, tx, id, current)
				if err != nil {
					return err
				}
				rec.Amount = amount.String()
			}
			rec.ClaimedBy = pass
			rec.ClaimedUntil = now + m.lease
			if err := putJSON(ctx, tx, payoutKey(id), rec); err != nil {
				return err
			}
			plan = append(plan, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (m *Manager) amountFor(ctx context.Context, tx store.Tx, id Identity, current *big.Int) (*big.Int, error) {
	if m.basis != BasisLocked {
		return current, nil
	}
	locked, err := getAmount(ctx, tx, attendeeKey(id))
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, fmt.Errorf("attendee %s has no attendance record", id)
	}
	return locked, nil
}

// settle completes one claimed payout, paying only if no earlier transfer settled.
func (m *Manager) settle(ctx context.Context, pass string, claim PayoutRecord) (PayoutRecord, error) {
	if claim.Reference != "" {
		done, err := m.payer.Settled(ctx, claim.Reference)
		if err != nil {
			return claim, fmt.Errorf("failed to check transfer %s: %w", claim.Reference, err)
		}
		if done {
			return m.markPaid(ctx, claim.Recipient, claim.Reference)
		}
	}

	amount, ok := new(big.Int).SetString(claim.Amount, 10)
	if !ok {
		return claim, fmt.Errorf("bad payout amount %q", claim.Amount)
	}
	p := Payment{ID: claim.PaymentID, Recipient: claim.Recipient, Amount: amount}
	ref, err := m.payer.Pay(ctx, p, func(ref string) error {
		return m.updateClaim(ctx, pass, claim.Recipient, func(rec *PayoutRecord) {
			rec.Reference = ref
		})
	})
	if err != nil {
		return claim, err
	}
	return m.markPaid(ctx, claim.Recipient, ref)
}

// updateClaim mutates a payout record that pass still owns.
func (m *Manager) updateClaim(ctx context.Context, pass string, id Identity, mutate func(*PayoutRecord)) error {
	return m.store.Update(ctx, func(tx store.Tx) error {
		rec, err := getPayout(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec == nil || rec.Status != PayoutPending || rec.ClaimedBy != pass {
			return errClaimLost
		}
		mutate(rec)
		return putJSON(ctx, tx, payoutKey(id), rec)
	})
}

// markPaid records that the transfer ref completed. It does not require the claim:
// the reference alone proves which transfer paid the attendee.
func (m *Manager) markPaid(ctx context.Context, id Identity, ref string) (PayoutRecord, error) {
	var out PayoutRecord
	err := m.store.Update(ctx, func(tx store.Tx) error {
		rec, err := getPayout(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec == nil || rec.Reference != ref {
			return errClaimLost
		}
		if rec.Status != PayoutPaid {
			rec.Status = PayoutPaid
			rec.PaidAt = m.clock.Now()
			rec.ClaimedBy, rec.ClaimedUntil, rec.LastError = "", 0, ""
			if err := putJSON(ctx, tx, payoutKey(id), rec); err != nil {
				return err
			}
		}
		out = *rec
		return nil
	})
	if err != nil {
		return PayoutRecord{}, fmt.Errorf("failed to record payout %s to %s: %w", ref, id, err)
	}
	return out, nil
}

// release gives up a failed claim so the next pass can retry at once.
func (m *Manager) release(ctx context.Context, pass string, id Identity, cause error) {
	err := m.updateClaim(context.WithoutCancel(ctx), pass, id, func(rec *PayoutRecord) {
		rec.ClaimedBy, rec.ClaimedUntil = "", 0
		rec.LastError = cause.Error()
	})
	if err != nil {
		logger.Warningf("Failed to release payout claim for %s: %v", id, err)
	}
}

// Payouts returns the completed payouts in check-in order.
func (m *Manager) Payouts(ctx context.Context) ([]PayoutRecord, error) {
	records := []PayoutRecord{}
	err := m.store.View(ctx, func(tx store.Tx) error {
		var attendees []Identity
		if _, err := getJSON(ctx, tx, slotAttendees, &attendees); err != nil {
			return err
		}
		for _, id := range attendees {
			rec, err := getPayout(ctx, tx, id)
			if err != nil {
				return err
			}
			if rec != nil && rec.Status == PayoutPaid {
				records = append(records, *rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func getPayout(ctx context.Context, tx store.Tx, id Identity) (*PayoutRecord, error) {
	var rec PayoutRecord
	ok, err := getJSON(ctx, tx, payoutKey(id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}
