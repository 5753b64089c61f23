package attendance

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAdmin_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.m.InitAdmin(ctx, signedAs(admin)))
	err := f.m.InitAdmin(ctx, signedAs(mallory))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	sum, err := f.m.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, sum.Admin)
}

func TestInitAdmin_RequiresSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.m.InitAdmin(ctx, testCaller{id: admin})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	sum, err := f.m.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, sum.AdminSet)
}

func TestInitAdmin_BootstrapIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithBootstrapAdmin(admin))

	assert.ErrorIs(t, f.m.InitAdmin(ctx, signedAs(mallory)), ErrNotAuthorized)
	require.NoError(t, f.m.InitAdmin(ctx, signedAs(admin)))
}

func TestInitAdmin_Race(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	callers := []Identity{admin, mallory, alice, bob}
	errs := make([]error, len(callers))
	var wg sync.WaitGroup
	for i, id := range callers {
		wg.Add(1)
		go func(i int, id Identity) {
			defer wg.Done()
			errs[i] = f.m.InitAdmin(ctx, signedAs(id))
		}(i, id)
	}
	wg.Wait()

	var winner Identity
	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			winner = callers[i]
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
	}
	require.Equal(t, 1, wins)

	sum, err := f.m.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, winner, sum.Admin)
}

func TestAdminOps_BeforeInit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.m.SetCode(ctx, signedAs(admin), "X"), ErrAdminNotSet)
	assert.ErrorIs(t, f.m.SetTimeWindow(ctx, signedAs(admin), 1, 2), ErrAdminNotSet)
	assert.ErrorIs(t, f.m.SetRewardAmount(ctx, signedAs(admin), bigInt(1)), ErrAdminNotSet)
	_, err := f.m.DistributeRewards(ctx, signedAs(admin))
	assert.ErrorIs(t, err, ErrAdminNotSet)
}

func TestAdminOps_NonAdminChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := configured(t)
	before := f.snapshot(t)

	assert.ErrorIs(t, f.m.SetCode(ctx, signedAs(mallory), "EVIL"), ErrNotAuthorized)
	assert.ErrorIs(t, f.m.SetTimeWindow(ctx, signedAs(mallory), 0, 1<<62), ErrNotAuthorized)
	assert.ErrorIs(t, f.m.SetRewardAmount(ctx, signedAs(mallory), bigInt(1_000_000)), ErrNotAuthorized)
	f.clock.Set(5000)
	_, err := f.m.DistributeRewards(ctx, signedAs(mallory))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.Equal(t, before, f.snapshot(t))
}

func TestAdminOps_UnsignedAdminRejected(t *testing.T) {
	ctx := context.Background()
	f := configured(t)
	before := f.snapshot(t)

	err := f.m.SetCode(ctx, testCaller{id: admin}, "OTHER")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, before, f.snapshot(t))
}

func TestAdminOps_AcceptUnvalidatedValues(t *testing.T) {
	ctx := context.Background()
	f := configured(t)

	require.NoError(t, f.m.SetTimeWindow(ctx, signedAs(admin), 3000, 100))
	require.NoError(t, f.m.SetRewardAmount(ctx, signedAs(admin), bigInt(-5)))
	require.NoError(t, f.m.SetCode(ctx, signedAs(admin), "NEW"))

	sum, err := f.m.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TimeWindow{Start: 3000, End: 100}, sum.Window)
	assert.Equal(t, int64(-5), sum.RewardAmount.Int64())
	assert.True(t, sum.CodeSet)
}

func TestAttend_Scenario(t *testing.T) {
	ctx := context.Background()
	f := configured(t)

	f.clock.Set(1500)
	require.NoError(t, f.m.Attend(ctx, signedAs(alice), "ABC123"))
	ok, err := f.m.HasAttended(ctx, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Set(2500)
	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(bob), "ABC123"), ErrOutsideWindow)
	ok, err = f.m.HasAttended(ctx, bob)
	require.NoError(t, err)
	assert.False(t, ok)

	report, err := f.m.DistributeRewards(ctx, signedAs(admin))
	require.NoError(t, err)
	assert.True(t, report.Completed)
	require.Len(t, f.payer.payments, 1)
	assert.Equal(t, alice, f.payer.payments[0].Recipient)
	assert.Equal(t, int64(50), f.payer.payments[0].Amount.Int64())

	sum, err := f.m.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Distributed)
}

func TestAttend_Twice(t *testing.T) {
	ctx := context.Background()
	f := configured(t)
	f.clock.Set(1200)

	require.NoError(t, f.m.Attend(ctx, signedAs(alice), "ABC123"))
	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(alice), "ABC123"), ErrAlreadyCheckedIn)

	// code and window are checked before the duplicate check
	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(alice), "WRONG"), ErrInvalidCode)
	f.clock.Set(2500)
	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(alice), "ABC123"), ErrOutsideWindow)

	attendees, err := f.m.GetAttendees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Identity{alice}, attendees)
}

func TestAttend_InclusiveBounds(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		now  uint64
		want error
	}{
		{999, ErrOutsideWindow},
		{1000, nil},
		{2000, nil},
		{2001, ErrOutsideWindow},
	} {
		f := configured(t)
		f.clock.Set(tc.now)
		err := f.m.Attend(ctx, signedAs(alice), "ABC123")
		if tc.want == nil {
			assert.NoError(t, err, "now=%d", tc.now)
		} else {
			assert.ErrorIs(t, err, tc.want, "now=%d", tc.now)
		}
	}
}

func TestAttend_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.m.InitAdmin(ctx, signedAs(admin)))

	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(alice), "ABC123"), ErrCodeNotSet)

	require.NoError(t, f.m.SetCode(ctx, signedAs(admin), "ABC123"))
	assert.ErrorIs(t, f.m.Attend(ctx, signedAs(alice), "WRONG"), ErrInvalidCode)
	assert.ErrorIs(t, f.m.Attend(ctx, testCaller{id: alice}, "ABC123"), ErrAuthenticationFailed)

	// no window: any time is fine
	f.clock.Set(1 << 40)
	require.NoError(t, f.m.Attend(ctx, signedAs(alice), "ABC123"))
}

func TestAttend_LocksRewardAndDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.m.InitAdmin(ctx, signedAs(admin)))
	require.NoError(t, f.m.SetCode(ctx, signedAs(admin), "ABC123"))

	require.NoError(t, f.m.Attend(ctx, signedAs(alice), "ABC123"))
	require.NoError(t, f.m.SetRewardAmount(ctx, signedAs(admin), bigInt(7)))
	require.NoError(t, f.m.Attend(ctx, signedAs(bob), "ABC123"))

	rec, found, err := f.m.Attendance(ctx, alice)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(DefaultReward), rec.LockedReward.Int64())

	rec, found, err = f.m.Attendance(ctx, bob)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(7), rec.LockedReward.Int64())
	assert.Nil(t, rec.Payout)

	_, found, err = f.m.Attendance(ctx, mallory)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetAttendees_FirstCheckInOrder(t *testing.T) {
	ctx := context.Background()
	f := configured(t)
	f.clock.Set(1500)

	attendees, err := f.m.GetAttendees(ctx)
	require.NoError(t, err)
	assert.Empty(t, attendees)

	order := []Identity{bob, mallory, alice}
	for _, id := range order {
		require.NoError(t, f.m.Attend(ctx, signedAs(id), "ABC123"))
		_ = f.m.Attend(ctx, signedAs(id), "ABC123")
	}

	attendees, err = f.m.GetAttendees(ctx)
	require.NoError(t, err)
	assert.Equal(t, order, attendees)

	for _, id := range attendees {
		ok, err := f.m.HasAttended(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestAttend_ConcurrentSameAttendee(t *testing.T) {
	ctx := context.Background()
	f := configured(t)
	f.clock.Set(1500)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.m.Attend(ctx, signedAs(alice), "ABC123")
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	}
	assert.Equal(t, 1, ok)

	attendees, err := f.m.GetAttendees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Identity{alice}, attendees)
}
