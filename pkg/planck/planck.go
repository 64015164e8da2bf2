package planck

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary amount in planck, the chain's smallest indivisible
// unit. Amounts are whole, non-negative integers; the chain stores them as
// u128 so they do not fit in int64.
type Amount struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{value: decimal.Zero}

// FromString parses a planck amount from its decimal string form. Fractional
// or negative input is rejected.
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid planck amount: %w", err)
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("planck amount must be an integer: %s", s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("planck amount must not be negative: %s", s)
	}
	return Amount{value: d}, nil
}

// FromInt creates an Amount from an int64. Negative input is floored to zero.
func FromInt(i int64) Amount {
	if i < 0 {
		return Zero
	}
	return Amount{value: decimal.NewFromInt(i)}
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{value: a.value.Add(b.value)}
}

// FloorSub returns a - b, floored at zero. This is the delta primitive for
// reconciliation: on-chain state is a floor and is never corrected downward.
func (a Amount) FloorSub(b Amount) Amount {
	d := a.value.Sub(b.value)
	if d.IsNegative() {
		return Zero
	}
	return Amount{value: d}
}

// Cmp compares a and b: -1 if a < b, 0 if equal, 1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.value.Cmp(b.value)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// String returns the decimal string form, as sent to the chain RPC.
func (a Amount) String() string {
	return a.value.String()
}

// MarshalJSON encodes the amount as a JSON string to avoid precision loss in
// consumers that parse JSON numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.value.String() + `"`), nil
}

// UnmarshalJSON decodes either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*a = Zero
		return nil
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
