package translator

import (
	"regexp"
	"strconv"
	"strings"
)

// Date is a partially resolved calendar date. Zero parts are unknown.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateParser resolves free-text dates as they appear in bibliographic records.
type DateParser interface {
	ParseDate(text string) Date
}

// DateParserFunc adapts a function to DateParser.
type DateParserFunc func(text string) Date

func (f DateParserFunc) ParseDate(text string) Date {
	return f(text)
}

var (
	isoDate   = regexp.MustCompile(`^(\d{4})(?:-(\d{1,2})(?:-(\d{1,2}))?)?(?:[T ].*)?$`)
	slashDate = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})[/.](\d{4})$`)
	looseYear = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
)

// StrToDate is the default DateParser.
var StrToDate = DateParserFunc(strToDate)

func strToDate(text string) Date {
	text = strings.TrimSpace(text)
	if text == "" {
		return Date{}
	}

	if m := isoDate.FindStringSubmatch(text); m != nil {
		return Date{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}
	}

	if m := slashDate.FindStringSubmatch(text); m != nil {
		first, second := atoi(m[1]), atoi(m[2])
		// day first unless that cannot be a month/day pair
		if second > 12 && first <= 12 {
			return Date{Year: atoi(m[3]), Month: first, Day: second}
		}
		return Date{Year: atoi(m[3]), Month: second, Day: first}
	}

	if m := looseYear.FindStringSubmatch(text); m != nil {
		return Date{Year: atoi(m[1])}
	}
	return Date{}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
