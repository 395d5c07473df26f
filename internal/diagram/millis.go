package diagram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Millis is a timestamp in Unix epoch milliseconds. Zero means unset.
type Millis int64

// FromTime converts t to Millis.
func FromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time converts m back to a UTC time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// IsZero reports whether m is unset.
func (m Millis) IsZero() bool { return m == 0 }

// MarshalJSON always writes a JSON number.
func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(m))), nil
}

// UnmarshalJSON accepts a number, an RFC 3339 string, or null.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		if s == "" {
			*m = 0
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*m = FromTime(t)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("timestamp: not a finite number")
	}
	*m = Millis(int64(f))
	return nil
}
