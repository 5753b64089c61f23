package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"attendance-backend/store"
)

// Slot keys.
const (
	slotAdmin       = "admin"
	slotCode        = "code"
	slotStartTime   = "start_time"
	slotEndTime     = "end_time"
	slotReward      = "reward_amount"
	slotAttendees   = "attendees"
	slotDistributed = "rewards_distributed"

	attendeePrefix = "attendee:"
	payoutPrefix   = "payout:"
)

func attendeeKey(id Identity) string { return attendeePrefix + string(id) }

func payoutKey(id Identity) string { return payoutPrefix + string(id) }

// TimeWindow is the inclusive check-in interval.
type TimeWindow struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// EventState holds every fixed slot of the event. Per-attendee records and payouts
// live in their own slots and are read on demand.
type EventState struct {
	Admin       Identity
	AdminSet    bool
	Code        string
	CodeSet     bool
	Start       *uint64
	End         *uint64
	Reward      *big.Int
	Attendees   []Identity
	Distributed bool
}

// RewardAmount returns the configured reward, or DefaultReward when none was set.
func (s *EventState) RewardAmount() *big.Int {
	if s.Reward == nil {
		return big.NewInt(DefaultReward)
	}
	return new(big.Int).Set(s.Reward)
}

// Window returns the check-in window if both bounds are present.
func (s *EventState) Window() (TimeWindow, bool) {
	if s.Start == nil || s.End == nil {
		return TimeWindow{}, false
	}
	return TimeWindow{Start: *s.Start, End: *s.End}, true
}

func (s *EventState) initAdmin(id Identity) error {
	if s.AdminSet {
		return ErrAlreadyInitialized
	}
	s.Admin = id
	s.AdminSet = true
	return nil
}

// requireAdmin checks that the caller claims the admin identity and proves it.
func (s *EventState) requireAdmin(c Caller) error {
	if !s.AdminSet {
		return ErrAdminNotSet
	}
	if !c.Is(s.Admin) {
		return ErrNotAuthorized
	}
	if !c.AuthorizedAs(s.Admin) {
		return ErrAuthenticationFailed
	}
	return nil
}

// checkCode runs the code and window preconditions of a check-in.
func (s *EventState) checkCode(code string, now uint64) error {
	if !s.CodeSet {
		return ErrCodeNotSet
	}
	if code != s.Code {
		return ErrInvalidCode
	}
	if w, ok := s.Window(); ok {
		if now < w.Start || now > w.End {
			return ErrOutsideWindow
		}
	}
	return nil
}

// addAttendee appends id to the roster unless it is already present.
func (s *EventState) addAttendee(id Identity) bool {
	for _, a := range s.Attendees {
		if a == id {
			return false
		}
	}
	s.Attendees = append(s.Attendees, id)
	return true
}

func (s *EventState) checkDistributable(now uint64) error {
	if s.Distributed {
		return ErrAlreadyDistributed
	}
	if s.End == nil {
		return ErrEndTimeNotSet
	}
	if now < *s.End {
		return ErrSessionNotOver
	}
	return nil
}

func loadState(ctx context.Context, tx store.Tx) (*EventState, error) {
	s := &EventState{}
	var err error

	if s.AdminSet, err = getJSON(ctx, tx, slotAdmin, &s.Admin); err != nil {
		return nil, err
	}
	if s.CodeSet, err = getJSON(ctx, tx, slotCode, &s.Code); err != nil {
		return nil, err
	}
	var start, end uint64
	ok, err := getJSON(ctx, tx, slotStartTime, &start)
	if err != nil {
		return nil, err
	}
	if ok {
		s.Start = &start
	}
	if ok, err = getJSON(ctx, tx, slotEndTime, &end); err != nil {
		return nil, err
	}
	if ok {
		s.End = &end
	}
	if s.Reward, err = getAmount(ctx, tx, slotReward); err != nil {
		return nil, err
	}
	if _, err = getJSON(ctx, tx, slotAttendees, &s.Attendees); err != nil {
		return nil, err
	}
	if _, err = getJSON(ctx, tx, slotDistributed, &s.Distributed); err != nil {
		return nil, err
	}
	return s, nil
}

// save writes the named slots of s.
func (s *EventState) save(ctx context.Context, tx store.Tx, slots ...string) error {
	for _, slot := range slots {
		var value any
		switch slot {
		case slotAdmin:
			value = s.Admin
		case slotCode:
			value = s.Code
		case slotStartTime:
			value = s.Start
		case slotEndTime:
			value = s.End
		case slotReward:
			if err := putAmount(ctx, tx, slotReward, s.Reward); err != nil {
				return err
			}
			continue
		case slotAttendees:
			value = s.Attendees
		case slotDistributed:
			value = s.Distributed
		default:
			return fmt.Errorf("unknown slot %q", slot)
		}
		if err := putJSON(ctx, tx, slot, value); err != nil {
			return err
		}
	}
	return nil
}

func getJSON(ctx context.Context, tx store.Tx, key string, dst any) (bool, error) {
	raw, ok, err := tx.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(ctx context.Context, tx store.Tx, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := tx.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Amounts are stored as decimal strings so they survive clients without big-number JSON.
func getAmount(ctx context.Context, tx store.Tx, key string) (*big.Int, error) {
	var s string
	ok, err := getJSON(ctx, tx, key, &s)
	if err != nil || !ok {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("failed to decode %s: bad amount %q", key, s)
	}
	return amount, nil
}

func putAmount(ctx context.Context, tx store.Tx, key string, amount *big.Int) error {
	return putJSON(ctx, tx, key, amount.String())
}
