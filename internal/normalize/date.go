package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ledgerline/statements/internal/domain"
)

// DateOrder is the preference used when a numeric date is genuinely
// ambiguous (both components <= 12). The day-first default matches most
// European bank exports; this is a configuration point, not a universal rule.
type DateOrder int

const (
	DayFirst DateOrder = iota
	MonthFirst
)

var (
	isoPrefix    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashNumeric = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	dotNumeric   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
)

// Fallback layouts tried when the common patterns do not match.
var genericLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"20060102",
}

// Date parses a raw date string into canonical YYYY-MM-DD form.
//
// ISO input is truncated to ten characters. D[/-]D[/-]YYYY patterns are
// disambiguated by magnitude (a component > 12 must be the day) and fall
// back to the order preference otherwise. Dot-separated dates are always
// treated as day-first. Failure names the unparseable string.
func Date(raw string, order DateOrder) (string, error) {
	s := trimSpace(raw)
	if s == "" {
		return "", domain.NewParseError("empty date", raw)
	}

	if isoPrefix.MatchString(s) {
		return s[:10], nil
	}

	if m := slashNumeric.FindStringSubmatch(s); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		var day, month int
		switch {
		case first > 12:
			day, month = first, second
		case second > 12:
			day, month = second, first
		case order == DayFirst:
			day, month = first, second
		default:
			day, month = second, first
		}
		return canonical(year, month, day, raw)
	}

	if m := dotNumeric.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return canonical(year, month, day, raw)
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	return "", domain.NewParseError("unparseable date", raw)
}

// canonical validates the components by round-tripping through time.Date.
func canonical(year, month, day int, raw string) (string, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", domain.NewParseError("unparseable date", raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", domain.NewParseError("unparseable date", raw)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}
