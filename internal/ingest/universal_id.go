package ingest

import (
	"regexp"
	"strconv"
	"time"
)

var universalIDPrefix = regexp.MustCompile(`^(\d{2})(\d{2})\.`)

// ParseUniversalID reads the YYMM prefix of an arXiv-style identifier. ok is
// false when the prefix is missing or the month is outside 1..12.
func ParseUniversalID(universalID string) (year int, month time.Month, ok bool) {
	m := universalIDPrefix.FindStringSubmatch(universalID)
	if m == nil {
		return 0, 0, false
	}
	yy, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm < 1 || mm > 12 {
		return 0, 0, false
	}
	return 2000 + yy, time.Month(mm), true
}

// ImpliedPublicationDate is the first day of the month encoded in the identifier.
func ImpliedPublicationDate(universalID string) (time.Time, bool) {
	year, month, ok := ParseUniversalID(universalID)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthsApart ignores days and returns the absolute month distance.
func MonthsApart(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	d := (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
	if d < 0 {
		return -d
	}
	return d
}
