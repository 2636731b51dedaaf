package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Ratio is an exact non-negative fraction. The zero value is 0/1.
type Ratio struct {
	num int64
	den int64
}

var (
	RatioZero = Ratio{num: 0, den: 1}
	RatioOne  = Ratio{num: 1, den: 1}
)

// NewRatio builds a reduced fraction num/den.
func NewRatio(num, den int64) (Ratio, error) {
	if den == 0 {
		return Ratio{}, fmt.Errorf("%w: zero denominator", ErrInvalidRatio)
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num < 0 {
		return Ratio{}, fmt.Errorf("%w: negative ratio %d/%d", ErrInvalidRatio, num, den)
	}
	g := gcd(num, den)
	return Ratio{num: num / g, den: den / g}, nil
}

// MustRatio is NewRatio for constants known to be valid.
func MustRatio(num, den int64) Ratio {
	r, err := NewRatio(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRatio accepts fractions ("1/3") and decimals ("0.25").
func ParseRatio(s string) (Ratio, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ratio{}, fmt.Errorf("%w: empty", ErrInvalidRatio)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Ratio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return Ratio{}, fmt.Errorf("%w: %q out of range", ErrInvalidRatio, s)
	}
	return NewRatio(r.Num().Int64(), r.Denom().Int64())
}

// Num returns the numerator.
func (r Ratio) Num() int64 { return r.num }

// Den returns the denominator.
func (r Ratio) Den() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

func (r Ratio) rat() *big.Rat {
	return big.NewRat(r.num, r.Den())
}

// IsZero reports whether r == 0.
func (r Ratio) IsZero() bool { return r.num == 0 }

// IsOne reports whether r == 1.
func (r Ratio) IsOne() bool { return r.num != 0 && r.num == r.Den() }

// Cmp compares r and o.
func (r Ratio) Cmp(o Ratio) int { return r.rat().Cmp(o.rat()) }

// Complement returns 1 - r. r must not exceed 1.
func (r Ratio) Complement() Ratio {
	return Ratio{num: r.Den() - r.num, den: r.Den()}
}

// Add returns r + o.
func (r Ratio) Add(o Ratio) (Ratio, error) {
	sum := new(big.Rat).Add(r.rat(), o.rat())
	if !sum.Num().IsInt64() || !sum.Denom().IsInt64() {
		return Ratio{}, fmt.Errorf("%w: overflow", ErrInvalidRatio)
	}
	return NewRatio(sum.Num().Int64(), sum.Denom().Int64())
}

// IsShare reports whether 0 <= r <= 1.
func (r Ratio) IsShare() bool { return r.num >= 0 && r.num <= r.Den() }

// String renders the ratio as "num/den".
func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.num, r.Den())
}

// MarshalText implements encoding.TextMarshaler.
func (r Ratio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ratio) UnmarshalText(b []byte) error {
	parsed, err := ParseRatio(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// SplitCents divides amount across shares that must sum to exactly one.
// Each part is floored on the absolute amount; the remainder goes to the
// largest share, ties resolving to the later share. The sign of amount is
// applied to every part, so the parts always sum to amount.
func SplitCents(amount int64, shares ...Ratio) ([]int64, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", ErrInvalidRatio)
	}
	total := new(big.Rat)
	for _, s := range shares {
		if !s.IsShare() {
			return nil, fmt.Errorf("%w: share %s outside [0,1]", ErrInvalidRatio, s)
		}
		total.Add(total, s.rat())
	}
	if total.Cmp(big.NewRat(1, 1)) != 0 {
		return nil, fmt.Errorf("%w: shares sum to %s", ErrInvalidRatio, total.RatString())
	}

	sign := int64(1)
	abs := amount
	if amount < 0 {
		sign, abs = -1, -amount
	}

	parts := make([]int64, len(shares))
	absBig := big.NewInt(abs)
	var allocated int64
	largest := 0
	for i, s := range shares {
		q := new(big.Int).Mul(absBig, big.NewInt(s.num))
		q.Quo(q, big.NewInt(s.Den()))
		parts[i] = q.Int64()
		allocated += parts[i]
		if s.Cmp(shares[largest]) >= 0 {
			largest = i
		}
	}
	parts[largest] += abs - allocated

	for i := range parts {
		parts[i] *= sign
	}
	return parts, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
