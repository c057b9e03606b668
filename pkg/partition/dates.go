package partition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// relativeDate matches service-style offsets such as "0", "-5", "-5D", "-3M",
// "+1Y". A non-zero offset needs a sign or a unit, so bare digit runs are
// never read as day counts.
var relativeDate = regexp.MustCompile(`^(0|[+-]\d+|[+-]?\d+[DWMQY])$`)
var offsetParts = regexp.MustCompile(`^([+-]?\d+)([DWMQY]?)$`)

// ParseDate parses an absolute ISO date or a relative offset from now.
// Relative offsets resolve to midnight UTC of the resulting day.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	upper := strings.ToUpper(s)
	if !relativeDate.MatchString(upper) {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	m := offsetParts.FindStringSubmatch(upper)
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date offset %q: %w", s, err)
	}

	day := now.UTC().Truncate(24 * time.Hour)
	switch m[2] {
	case "", "D":
		return day.AddDate(0, 0, n), nil
	case "W":
		return day.AddDate(0, 0, 7*n), nil
	case "M":
		return day.AddDate(0, n, 0), nil
	case "Q":
		return day.AddDate(0, 3*n, 0), nil
	default: // "Y"
		return day.AddDate(n, 0, 0), nil
	}
}

// days returns the whole number of days between a and b, regardless of order.
func days(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}
