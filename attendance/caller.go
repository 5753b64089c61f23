package attendance

import "time"

// Identity identifies an admin or attendee. The HTTP layer uses checksummed EVM addresses.
type Identity string

// Caller is the identity behind the request being executed.
type Caller interface {
	// Identity is the identity the request claims to act for.
	Identity() Identity
	// Is reports whether the claimed identity equals id.
	Is(id Identity) bool
	// AuthorizedAs reports whether the request carries proof that id authorized it.
	AuthorizedAs(id Identity) bool
}

// Clock supplies the current ledger timestamp in unix seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}
