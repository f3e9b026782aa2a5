package availability

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) Duration() int { return iv.End - iv.Start }

func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.Start < iv.End && iv.End <= MinutesPerDay
}

// Overlaps reports whether iv and other share at least one minute.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (iv Interval) String() string {
	return FormatMinute(iv.Start) + "-" + FormatMinute(iv.End)
}

// ParseTime converts H, H:M or H:M:S into a minute of day. Seconds are
// range-checked and then dropped.
func ParseTime(token string) (int, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ":")
	if token == "" || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, token)
	}

	limits := [3]int{24, 60, 60}
	var values [3]int
	for i, p := range parts {
		n, ok := parseSmallUint(p)
		if !ok || n >= limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, token)
		}
		values[i] = n
	}
	return values[0]*60 + values[1], nil
}

// parseSmallUint accepts one or two ASCII digits.
func parseSmallUint(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// FormatMinute renders a minute of day as zero-padded HH:MM. 1440 renders as 24:00.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ResolveDay turns a literal YYYY-MM-DD or the tokens "today"/"tomorrow" into
// a canonical date, evaluated in loc.
func ResolveDay(token string, now time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	switch strings.ToLower(strings.TrimSpace(token)) {
	case "today":
		return local.Format(DateLayout), nil
	case "tomorrow":
		return local.AddDate(0, 0, 1).Format(DateLayout), nil
	}

	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(token), loc)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, token)
	}
	return t.Format(DateLayout), nil
}

// AddDays shifts a canonical date by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, day)
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// NextDay reports whether b is exactly one calendar day after a.
func NextDay(a, b string) bool {
	next, err := AddDays(a, 1)
	return err == nil && next == b
}

// EndOrDefault resolves an optional end token. A missing end becomes
// start + the default session length, clamped to the end of the day.
func EndOrDefault(start int, end *string, s Settings) (int, bool, error) {
	if end == nil || strings.TrimSpace(*end) == "" {
		e := start + s.DefaultSession
		if e > MinutesPerDay {
			e = MinutesPerDay
		}
		return e, false, nil
	}
	e, err := ParseTime(*end)
	if err != nil {
		return 0, true, err
	}
	return e, true, nil
}
