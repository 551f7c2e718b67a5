package actions

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (kobo).
type Money int64

// FromMajor converts a major-unit amount, rounding half away from zero.
func FromMajor(v float64) Money {
	return Money(math.Round(v * 100))
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m) / 100
}

// String formats the amount with thousands separators, e.g. "₦53,750.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := strconv.FormatInt(v/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s₦%s.%02d", sign, b.String(), v%100)
}

// ParseMoney reads a user-entered major-unit amount such as "5,000",
// "N5000.50" or "₦5k".
func ParseMoney(raw string) (Money, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "₦")
	s = strings.TrimPrefix(s, "ngn")
	s = strings.TrimPrefix(s, "n")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not an amount", raw)
	}
	return FromMajor(v * multiplier), nil
}

// MarshalJSON stores money as an integer number of minor units.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// UnmarshalJSON accepts integers and floats (documents that passed through a
// generic map decode as float64).
func (m *Money) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Money(math.Round(f))
	return nil
}
