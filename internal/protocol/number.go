package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number keeps the literal text the server sent for a numeric field. The
// server may send either a JSON number or a numeric string; both decode to
// the same Number.
type Number string

// UnmarshalJSON implements the json.Unmarshaler interface
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ""
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*n = Number(num.String())
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(strings.TrimSpace(s))
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into Number", string(b))
}

// MarshalJSON writes the literal back as a JSON string.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// String returns the literal text
func (n Number) String() string {
	return string(n)
}

// Decimal parses the value after stripping thousands separators.
func (n Number) Decimal() (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(n)), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	return decimal.NewFromString(s)
}

// Sign is -1, 0 or +1. Unparseable values count as zero.
func (n Number) Sign() int {
	d, err := n.Decimal()
	if err != nil {
		return 0
	}
	return d.Sign()
}

// Fixed formats with the given number of decimals. Unparseable text is
// returned as-is, and an empty value formats as zero.
func (n Number) Fixed(places int32) string {
	if strings.TrimSpace(string(n)) == "" {
		return decimal.Zero.StringFixed(places)
	}
	d, err := n.Decimal()
	if err != nil {
		return string(n)
	}
	return d.StringFixed(places)
}

// Float64 is used by the chart, which plots floats.
func (n Number) Float64() float64 {
	d, err := n.Decimal()
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Time is a timestamp that accepts the formats the bot emits: RFC3339, the
// sqlite "YYYY-MM-DD HH:MM:SS[.ffffff]" form, a bare date, or unix seconds /
// milliseconds. Zone-less values are taken as UTC.
type Time time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses s using the accepted layouts.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(unix), nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return Time(t), nil
		}
		lastErr = err
	}
	return Time{}, lastErr
}

func unixTime(v int64) Time {
	// 大于 1e12 视为毫秒
	if v > 1_000_000_000_000 {
		return Time(time.UnixMilli(v).UTC())
	}
	return Time(time.Unix(v, 0).UTC())
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "null" || s == "" {
		*t = Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (t Time) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tt.Format(time.RFC3339))
}

// Time returns the underlying time.Time value
func (t Time) Time() time.Time {
	return time.Time(t)
}

// IsZero reports whether the timestamp was absent.
func (t Time) IsZero() bool {
	return time.Time(t).IsZero()
}
