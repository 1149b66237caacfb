// Package types provides common types used across the token sale engine.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount represents a non-negative quantity of an asset in its smallest
// indivisible unit. A ledger with 18 decimals expresses one whole token
// as Units(1, 18). All arithmetic is arbitrary-precision integer math;
// no floating point, no overflow: 100_000 whole tokens at 18 decimals
// already exceeds int64.
//
// Amount is an immutable value type. The zero value is zero.
type Amount struct {
	i *big.Int
}

// NewAmount creates an Amount from an int64. Negative values panic.
func NewAmount(v int64) Amount {
	if v < 0 {
		panic(fmt.Sprintf("types: negative amount %d", v))
	}
	return Amount{i: big.NewInt(v)}
}

// ParseAmount parses a base-10 string of smallest units.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: cannot parse amount %q", s)
	}
	if i.Sign() < 0 {
		return Amount{}, fmt.Errorf("types: negative amount %q", s)
	}
	return Amount{i: i}, nil
}

// MustAmount is like ParseAmount but panics on error. Use for hardcoded values.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Units returns whole × 10^decimals, i.e. a whole-token count expressed
// in smallest units.
func Units(whole int64, decimals uint8) Amount {
	return NewAmount(whole).Mul(Pow10(decimals))
}

// Pow10 returns 10^decimals as an Amount. This is the token scale used
// for price computation.
func Pow10(decimals uint8) Amount {
	i := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return Amount{i: i}
}

// big returns the inner value, treating the zero Amount as 0.
func (a Amount) big() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// Add returns a + other.
func (a Amount) Add(other Amount) Amount {
	return Amount{i: new(big.Int).Add(a.big(), other.big())}
}

// Sub returns a − other. Panics if the result would be negative;
// amounts are unsigned and a negative intermediate means the caller
// skipped a balance check.
func (a Amount) Sub(other Amount) Amount {
	r := new(big.Int).Sub(a.big(), other.big())
	if r.Sign() < 0 {
		panic(fmt.Sprintf("types: amount underflow: %s - %s", a, other))
	}
	return Amount{i: r}
}

// Mul returns a × other.
func (a Amount) Mul(other Amount) Amount {
	return Amount{i: new(big.Int).Mul(a.big(), other.big())}
}

// MulDiv returns ⌊a × num / den⌋, truncating any fractional remainder
// toward zero. Panics on a zero denominator.
func (a Amount) MulDiv(num, den Amount) Amount {
	if den.IsZero() {
		panic("types: amount division by zero")
	}
	r := new(big.Int).Mul(a.big(), num.big())
	r.Quo(r, den.big())
	return Amount{i: r}
}

// Cmp compares a and other, returning -1, 0 or +1.
func (a Amount) Cmp(other Amount) int { return a.big().Cmp(other.big()) }

// Equal reports whether both amounts are numerically equal.
func (a Amount) Equal(other Amount) bool { return a.Cmp(other) == 0 }

// LessThan reports a < other.
func (a Amount) LessThan(other Amount) bool { return a.Cmp(other) < 0 }

// GreaterThan reports a > other.
func (a Amount) GreaterThan(other Amount) bool { return a.Cmp(other) > 0 }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

// BigInt returns a copy of the amount as a *big.Int.
func (a Amount) BigInt() *big.Int { return new(big.Int).Set(a.big()) }

// Int64 returns the amount as an int64 and whether it fits.
func (a Amount) Int64() (int64, bool) {
	b := a.big()
	return b.Int64(), b.IsInt64()
}

// Float64 returns an approximate float64 value. Intended for metrics
// and display only, never for accounting.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.big()).Float64()
	return f
}

// String returns the base-10 smallest-unit representation.
func (a Amount) String() string { return a.big().String() }

// Format renders the amount as a whole-token decimal string for the
// given precision, trimming trailing zeros: Units(3, 18).Format(18) == "3".
func (a Amount) Format(decimals uint8) string {
	if decimals == 0 {
		return a.String()
	}
	scale := Pow10(decimals).big()
	q, r := new(big.Int).QuoRem(a.big(), scale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%0*s", decimals, r.String())
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

// MarshalJSON implements json.Marshaler. Amounts serialize as strings
// so that consumers never round them through float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer. Amounts are stored as base-10 strings;
// 18-decimal quantities do not fit integer columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := ParseAmount(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = NewAmount(v)
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into Amount", src)
	}
}

// Sum adds up multiple amounts.
func Sum(values ...Amount) Amount {
	total := Amount{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
