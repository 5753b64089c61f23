package attendance

import (
	"fmt"
	"math/big"
)

// DefaultReward is paid per attendee when no reward amount was configured.
const DefaultReward = 100

var (
	// MaxReward and MinReward bound a signed 128-bit amount.
	MaxReward = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinReward = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// ParseAmount parses a base-10 reward amount and checks that it fits in 128 signed bits.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if !AmountInRange(amount) {
		return nil, fmt.Errorf("amount %s out of 128-bit range", s)
	}
	return amount, nil
}

// AmountInRange reports whether amount fits in 128 signed bits.
func AmountInRange(amount *big.Int) bool {
	return amount.Cmp(MinReward) >= 0 && amount.Cmp(MaxReward) <= 0
}
