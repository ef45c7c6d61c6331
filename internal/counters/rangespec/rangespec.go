package rangespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Spec is an inclusive [Min,Max] range, or an exclusion of that range when Exclude is set.
type Spec struct {
	Min     int32
	Max     int32
	Exclude bool
}

func Full() Spec { return Spec{Min: math.MinInt32, Max: math.MaxInt32} }

func Exact(v int32) Spec { return Spec{Min: v, Max: v} }

func Between(min, max int32) Spec {
	if min > max {
		min, max = max, min
	}
	return Spec{Min: min, Max: max}
}

func Excluding(min, max int32) Spec {
	s := Between(min, max)
	s.Exclude = true
	return s
}

// Parse reads "5", "1..10", "..10", "5..", "!2..4". ok is false when the text
// carries no digits at all; callers fall back to a previously saved value.
func Parse(text string) (Spec, bool) {
	s := strings.TrimSpace(text)
	exclude := false
	if strings.HasPrefix(s, "!") {
		exclude = true
		s = strings.TrimSpace(s[1:])
	}
	if !hasDigit(s) {
		return Spec{}, false
	}

	var lo, hi int32
	if i := strings.Index(s, ".."); i >= 0 {
		lo = boundOr(s[:i], math.MinInt32)
		hi = boundOr(s[i+2:], math.MaxInt32)
	} else {
		v, ok := leadingInt(s)
		if !ok {
			return Spec{}, false
		}
		lo, hi = v, v
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return Spec{Min: lo, Max: hi, Exclude: exclude}, true
}

func ParseOr(text string, fallback Spec) Spec {
	if s, ok := Parse(text); ok {
		return s
	}
	return fallback
}

// Format renders s in the grammar Parse accepts. Open ends are left empty,
// except that a fully open range keeps its lower bound so it stays parseable.
func Format(s Spec) string {
	var b strings.Builder
	if s.Exclude {
		b.WriteByte('!')
	}
	switch {
	case s.Min == s.Max:
		b.WriteString(strconv.FormatInt(int64(s.Min), 10))
	default:
		if s.Min != math.MinInt32 || s.Max == math.MaxInt32 {
			b.WriteString(strconv.FormatInt(int64(s.Min), 10))
		}
		b.WriteString("..")
		if s.Max != math.MaxInt32 {
			b.WriteString(strconv.FormatInt(int64(s.Max), 10))
		}
	}
	return b.String()
}

func (s Spec) String() string { return Format(s) }

// Contains reports whether v lies in [Min,Max], ignoring Exclude.
func (s Spec) Contains(v int64) bool {
	return v >= int64(s.Min) && v <= int64(s.Max)
}

// Passes is Contains for inclusive ranges and its negation for exclusions.
func (s Spec) Passes(v int64) bool {
	if s.Exclude {
		return !s.Contains(v)
	}
	return s.Contains(v)
}

func (s Spec) IsFull() bool {
	return !s.Exclude && s.Min == math.MinInt32 && s.Max == math.MaxInt32
}

func ClampInt32(v int64) int32 {
	if v < math.MinInt32 {
		return math.MinInt32
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

type bounds struct {
	Min int32 `json:"min"`
	Max int32 `json:"max"`
}

func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Exclude {
		return json.Marshal(struct {
			Exclude bounds `json:"exclude"`
		}{bounds{s.Min, s.Max}})
	}
	return json.Marshal(bounds{s.Min, s.Max})
}

type partialBounds struct {
	Min     *float64        `json:"min"`
	Max     *float64        `json:"max"`
	Exclude json.RawMessage `json:"exclude"`
}

// UnmarshalJSON overwrites only the fields present in data, so a partially
// saved range keeps the receiver's other end. A range string that cannot be
// parsed leaves the receiver untouched.
func (s *Spec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = ParseOr(text, *s)
		return nil
	case '{':
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("range: %w", err)
		}
		*s = Exact(clampFloat(f))
		return nil
	}

	var p partialBounds
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("range: %w", err)
	}
	next := *s
	if p.Min != nil {
		next.Min = clampFloat(*p.Min)
	}
	if p.Max != nil {
		next.Max = clampFloat(*p.Max)
	}
	ex := bytes.TrimSpace(p.Exclude)
	switch {
	case len(ex) == 0 || bytes.Equal(ex, []byte("null")):
	case ex[0] == '{':
		var inner partialBounds
		if err := json.Unmarshal(ex, &inner); err != nil {
			return fmt.Errorf("range exclude: %w", err)
		}
		if inner.Min != nil {
			next.Min = clampFloat(*inner.Min)
		}
		if inner.Max != nil {
			next.Max = clampFloat(*inner.Max)
		}
		next.Exclude = true
	default:
		var flag bool
		if err := json.Unmarshal(ex, &flag); err != nil {
			return fmt.Errorf("range exclude: %w", err)
		}
		next.Exclude = flag
	}
	if next.Min > next.Max {
		next.Min, next.Max = next.Max, next.Min
	}
	*s = next
	return nil
}

func clampFloat(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(f)
}

func hasDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}

func boundOr(s string, open int32) int32 {
	if v, ok := leadingInt(s); ok {
		return v
	}
	return open
}

// leadingInt reads an optional sign and a run of digits, ignoring whatever
// follows. Magnitudes beyond int32 saturate.
func leadingInt(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	var n int64
	digits := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		digits++
		if n <= math.MaxInt32+1 {
			n = n*10 + int64(c-'0')
		}
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return ClampInt32(n), true
}
