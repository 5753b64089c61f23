// Package attendance implements the single-event check-in and reward lifecycle:
// an admin configures the event, attendees check in once with the event code, and
// the admin distributes rewards after the window closes.
package attendance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/logger"

	"attendance-backend/store"
)

// Manager runs lifecycle operations against a store. Configuration and check-in
// operations are serialized and each one commits all of its slot writes or none of
// them. Distribution coordinates through payout claims in the store instead, so a slow
// payer never blocks check-ins.
type Manager struct {
	mu     sync.Mutex
	store  store.Store
	payer  Payer
	clock  Clock
	basis  RewardBasis
	bootID Identity
	lease  uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRewardBasis selects which amount distribution pays.
func WithRewardBasis(b RewardBasis) Option {
	return func(m *Manager) { m.basis = b }
}

// WithBootstrapAdmin restricts InitAdmin to a single trusted identity.
func WithBootstrapAdmin(id Identity) Option {
	return func(m *Manager) { m.bootID = id }
}

// WithPayoutLease sets how long a distribution pass owns its claimed attendees. It must
// exceed the longest time a pass may run.
func WithPayoutLease(d time.Duration) Option {
	return func(m *Manager) { m.lease = uint64(d / time.Second) }
}

// NewManager creates a Manager.
func NewManager(s store.Store, payer Payer, opts ...Option) *Manager {
	m := &Manager{
		store: s,
		payer: payer,
		clock: SystemClock{},
		basis: BasisCurrent,
		lease: uint64(DefaultPayoutLease / time.Second),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitAdmin makes the caller the event admin. It succeeds once.
func (m *Manager) InitAdmin(ctx context.Context, caller Caller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := caller.Identity()
	if !caller.AuthorizedAs(id) {
		return ErrAuthenticationFailed
	}

	err := m.store.Update(ctx, func(tx store.Tx) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := st.initAdmin(id); err != nil {
			return err
		}
		if m.bootID != "" && id != m.bootID {
			return ErrNotAuthorized
		}
		return st.save(ctx, tx, slotAdmin)
	})
	if err != nil {
		return err
	}
	logger.Infof("Admin initialized: %s", id)
	return nil
}

// SetCode replaces the event code.
func (m *Manager) SetCode(ctx context.Context, caller Caller, code string) error {
	err := m.adminUpdate(ctx, caller, func(st *EventState) []string {
		st.Code = code
		st.CodeSet = true
		return []string{slotCode}
	})
	if err != nil {
		return err
	}
	logger.Info("Event code set")
	return nil
}

// SetTimeWindow replaces both window bounds. Inverted windows are accepted.
func (m *Manager) SetTimeWindow(ctx context.Context, caller Caller, start, end uint64) error {
	err := m.adminUpdate(ctx, caller, func(st *EventState) []string {
		st.Start = &start
		st.End = &end
		return []string{slotStartTime, slotEndTime}
	})
	if err != nil {
		return err
	}
	logger.Infof("Time window set: [%d, %d]", start, end)
	return nil
}

// SetRewardAmount replaces the per-attendee reward. Negative amounts are accepted.
func (m *Manager) SetRewardAmount(ctx context.Context, caller Caller, amount *big.Int) error {
	err := m.adminUpdate(ctx, caller, func(st *EventState) []string {
		st.Reward = new(big.Int).Set(amount)
		return []string{slotReward}
	})
	if err != nil {
		return err
	}
	logger.Infof("Reward amount set to %s", amount)
	return nil
}

func (m *Manager) adminUpdate(ctx context.Context, caller Caller, mutate func(*EventState) []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Update(ctx, func(tx store.Tx) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := st.requireAdmin(caller); err != nil {
			return err
		}
		return st.save(ctx, tx, mutate(st)...)
	})
}

// Attend checks the caller in. The reward in effect now is locked into their record.
func (m *Manager) Attend(ctx context.Context, caller Caller, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := caller.Identity()
	if !caller.AuthorizedAs(id) {
		return ErrAuthenticationFailed
	}

	var reward *big.Int
	err := m.store.Update(ctx, func(tx store.Tx) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := st.checkCode(code, m.clock.Now()); err != nil {
			return err
		}
		attended, err := tx.Has(ctx, attendeeKey(id))
		if err != nil {
			return err
		}
		if attended {
			return ErrAlreadyCheckedIn
		}

		reward = st.RewardAmount()
		if err := putAmount(ctx, tx, attendeeKey(id), reward); err != nil {
			return err
		}
		if st.addAttendee(id) {
			return st.save(ctx, tx, slotAttendees)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("%s checked in; reward %s pending", id, reward)
	return nil
}

// GetAttendees returns attendees in check-in order.
func (m *Manager) GetAttendees(ctx context.Context) ([]Identity, error) {
	var attendees []Identity
	err := m.store.View(ctx, func(tx store.Tx) error {
		_, err := getJSON(ctx, tx, slotAttendees, &attendees)
		return err
	})
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []Identity{}
	}
	return attendees, nil
}

// HasAttended reports whether id has an attendance record.
func (m *Manager) HasAttended(ctx context.Context, id Identity) (bool, error) {
	var attended bool
	err := m.store.View(ctx, func(tx store.Tx) error {
		var err error
		attended, err = tx.Has(ctx, attendeeKey(id))
		return err
	})
	return attended, err
}

// AttendanceRecord is one attendee's check-in.
type AttendanceRecord struct {
	Identity     Identity
	LockedReward *big.Int
	Payout       *PayoutRecord
}

// Attendance returns the record for id. The boolean is false if id never checked in.
func (m *Manager) Attendance(ctx context.Context, id Identity) (AttendanceRecord, bool, error) {
	rec := AttendanceRecord{Identity: id}
	found := false
	err := m.store.View(ctx, func(tx store.Tx) error {
		locked, err := getAmount(ctx, tx, attendeeKey(id))
		if err != nil || locked == nil {
			return err
		}
		found = true
		rec.LockedReward = locked
		rec.Payout, err = getPayout(ctx, tx, id)
		return err
	})
	if err != nil {
		return AttendanceRecord{}, false, err
	}
	return rec, found, nil
}

// Summary is the public view of the event configuration. It never includes the code.
type Summary struct {
	Admin        Identity
	AdminSet     bool
	CodeSet      bool
	Window       *TimeWindow
	RewardAmount *big.Int
	Attendees    int
	Distributed  bool
	Basis        RewardBasis
}

// Summary reads the current event configuration.
func (m *Manager) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := m.store.View(ctx, func(tx store.Tx) error {
		st, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		sum = Summary{
			Admin:        st.Admin,
			AdminSet:     st.AdminSet,
			CodeSet:      st.CodeSet,
			RewardAmount: st.RewardAmount(),
			Attendees:    len(st.Attendees),
			Distributed:  st.Distributed,
			Basis:        m.basis,
		}
		if w, ok := st.Window(); ok {
			sum.Window = &w
		}
		return nil
	})
	return sum, err
}
