package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coefficient is a payout multiplier stored as fixed-point thousandths
// (2.500 -> 2500). The schema column is NUMERIC(6,3); keeping the value in
// integer millis means payout math never touches floating point.
type Coefficient int64

// ParseCoefficient parses a decimal string like "1.857" or "2" into a
// Coefficient. At most three fractional digits are kept; extra digits are an
// error rather than a silent truncation.
func ParseCoefficient(s string) (Coefficient, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty coefficient")
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 3 {
		return 0, fmt.Errorf("coefficient %q has more than 3 decimal places", s)
	}
	for len(frac) < 3 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coefficient %q: %w", s, err)
	}
	if w < 0 {
		return 0, fmt.Errorf("coefficient %q is negative", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coefficient %q: %w", s, err)
	}

	return Coefficient(w*1000 + f), nil
}

// String renders the coefficient back as a decimal, e.g. 1857 -> "1.857".
func (c Coefficient) String() string {
	return fmt.Sprintf("%d.%03d", int64(c)/1000, int64(c)%1000)
}

// Float64 is for display payloads only; payout math stays integer.
func (c Coefficient) Float64() float64 {
	return float64(c) / 1000
}

// Payout returns floor(value * coefficient). Integer division truncates
// toward zero for non-negative operands, so fractional stars are never
// rounded up.
func (c Coefficient) Payout(value int64) int64 {
	return value * int64(c) / 1000
}

// MarshalJSON emits the coefficient as a JSON number (e.g. 1.857) to match
// the wire shape of the events.coefficients column.
func (c Coefficient) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts JSON numbers like 2, 1.5 or 1.857.
func (c *Coefficient) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	parsed, err := ParseCoefficient(n.String())
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
