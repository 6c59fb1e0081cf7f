// Package datetime turns the free-text date strings printed on event listings
// into start instants.
//
// Listings use a handful of shapes, all starting with a weekday, a month name,
// a day and a year separated by dots, optionally followed by door and bell
// times. Resolve tries the known shapes in order and reports which one matched.
package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Tag records how much zone information a resolved instant carries.
type Tag string

const (
	// TagUTC marks an instant localized to a known zone.
	TagUTC Tag = "utc"
	// TagLocal marks a wall-clock time whose zone could not be determined.
	TagLocal Tag = "local"
	// TagNone marks a date printed without any time.
	TagNone Tag = "none"
)

// Result is the outcome of resolving one string. The zero value means the
// string was not recognized.
type Result struct {
	// Start is the bell time. Naive times are expressed as a UTC wall clock.
	Start time.Time
	Tag   Tag
	// Rule names the shape that matched.
	Rule string
}

// Recognized reports whether any rule matched.
func (r Result) Recognized() bool { return r.Rule != "" }

// DateKey is the calendar date of the start in the zone it was resolved in.
func (r Result) DateKey() string {
	if !r.Recognized() {
		return ""
	}
	return r.Start.Format("2006-01-02")
}

var (
	Tokyo   = mustLoad("Asia/Tokyo")
	Eastern = mustLoad("America/New_York")
	Central = mustLoad("America/Chicago")
)

// Zones maps the abbreviations accepted after a 12-hour time.
var Zones = map[string]*time.Location{
	"JST": Tokyo,
	"ET":  Eastern,
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("datetime: loading %s: %v", name, err))
	}
	return loc
}

const (
	datePart = `[A-Za-z]{3,4}\. ([A-Za-z]+)\. (\d{1,2})\. (\d{4})`
	clock12  = `(\d{1,2})(?::(\d{2}))? ?([AaPp][Mm])`
	note     = `(?: \([^)]*\))?`
	zone     = ` ([A-Za-z]{2,4})`
)

type civilDate struct {
	year  int
	month time.Month
	day   int
}

type rule struct {
	name  string
	re    *regexp.Regexp
	build func(d civilDate, m []string, raw string) (time.Time, Tag, bool)
}

// Groups 1-3 of every pattern hold the date; time groups start at 4.
var rules = []rule{
	{
		name: "door-bell-24h",
		re:   regexp.MustCompile(`^` + datePart + ` \| DOOR (\d{1,2}):(\d{2}) \| BELL (\d{1,2}):(\d{2})$`),
		build: func(d civilDate, m []string, _ string) (time.Time, Tag, bool) {
			return in(d, m[6], m[7], "", Tokyo, TagUTC)
		},
	},
	{
		name: "date-only",
		re:   regexp.MustCompile(`^` + datePart + `$`),
		build: func(d civilDate, _ []string, _ string) (time.Time, Tag, bool) {
			return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC), TagNone, true
		},
	},
	{
		name: "door-bell-12h",
		re:   regexp.MustCompile(`^` + datePart + ` \| DOOR ` + clock12 + note + ` \| BELL ` + clock12 + note + `$`),
		build: func(d civilDate, m []string, _ string) (time.Time, Tag, bool) {
			return in(d, m[7], m[8], m[9], time.UTC, TagLocal)
		},
	},
	{
		name: "door-bell-12h-zone",
		re:   regexp.MustCompile(`^` + datePart + ` \| DOOR ` + clock12 + zone + note + ` \| BELL ` + clock12 + zone + `$`),
		build: func(d civilDate, m []string, raw string) (time.Time, Tag, bool) {
			return zoned(d, m[8], m[9], m[10], raw)
		},
	},
	{
		name: "bell-12h-zone",
		re:   regexp.MustCompile(`^` + datePart + ` \| BELL (\d{1,2}):(\d{2}) ?([AaPp][Mm])` + zone + `$`),
		build: func(d civilDate, m []string, raw string) (time.Time, Tag, bool) {
			return zoned(d, m[4], m[5], m[6], raw)
		},
	},
	{
		name: "bell-broadcast",
		re:   regexp.MustCompile(`^` + datePart + ` \| BELL (\d{1,2})/(\d{1,2})[cC]$`),
		build: func(d civilDate, m []string, _ string) (time.Time, Tag, bool) {
			// "8/7c" is an evening slot: 8 Eastern, 7 Central.
			h, err := strconv.Atoi(m[4])
			if err != nil || h < 1 || h > 12 {
				return time.Time{}, "", false
			}
			return in(d, strconv.Itoa(h), "00", "PM", Central, TagLocal)
		},
	},
	{
		name: "bell-24h",
		re:   regexp.MustCompile(`^` + datePart + ` \| BELL (\d{1,2}):(\d{2})$`),
		build: func(d civilDate, m []string, _ string) (time.Time, Tag, bool) {
			return in(d, m[4], m[5], "", Tokyo, TagUTC)
		},
	},
	{
		name: "bell-12h",
		re:   regexp.MustCompile(`^` + datePart + ` \| BELL ` + clock12 + note + `$`),
		build: func(d civilDate, m []string, _ string) (time.Time, Tag, bool) {
			return in(d, m[4], m[5], m[6], time.UTC, TagLocal)
		},
	},
}

var (
	spaces = regexp.MustCompile(`\s+`)
	pipes  = regexp.MustCompile(`\s*\|\s*`)
)

// Normalize collapses whitespace runs and the spacing around separators.
func Normalize(raw string) string {
	s := spaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	return pipes.ReplaceAllString(s, " | ")
}

// Resolve matches raw against the known shapes, first match wins. It never
// fails: unknown shapes return the zero Result.
func Resolve(raw string) Result {
	s := Normalize(raw)
	for _, r := range rules {
		m := r.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		d, ok := parseDate(m[1], m[2], m[3])
		if !ok {
			return Result{}
		}
		start, tag, ok := r.build(d, m, s)
		if !ok {
			return Result{}
		}
		return Result{Start: start, Tag: tag, Rule: r.name}
	}
	return Result{}
}

// Abbreviation returns the uppercased last whitespace-delimited segment.
func Abbreviation(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[len(fields)-1])
}

func zoned(d civilDate, h, minute, mer, raw string) (time.Time, Tag, bool) {
	if loc, ok := Zones[Abbreviation(raw)]; ok {
		return in(d, h, minute, mer, loc, TagUTC)
	}
	return in(d, h, minute, mer, time.UTC, TagLocal)
}

func parseDate(month, day, year string) (civilDate, bool) {
	mon, ok := lookupMonth(month)
	if !ok {
		return civilDate{}, false
	}
	dd, err := strconv.Atoi(day)
	if err != nil {
		return civilDate{}, false
	}
	yy, err := strconv.Atoi(year)
	if err != nil {
		return civilDate{}, false
	}
	t := time.Date(yy, mon, dd, 0, 0, 0, 0, time.UTC)
	if t.Day() != dd || t.Month() != mon {
		return civilDate{}, false
	}
	return civilDate{year: yy, month: mon, day: dd}, true
}

// lookupMonth accepts any prefix of an English month name of at least three letters.
func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToUpper(name)
	if len(name) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToUpper(m.String()), name) {
			return m, true
		}
	}
	return 0, false
}

// in builds the instant for a wall clock on d. An empty meridiem selects
// 24-hour parsing. Hours are zero-padded and minutes default to 00.
func in(d civilDate, hour, minute, meridiem string, loc *time.Location, tag Tag) (time.Time, Tag, bool) {
	if len(hour) == 1 {
		hour = "0" + hour
	}
	if minute == "" {
		minute = "00"
	}
	var (
		clock time.Time
		err   error
	)
	if meridiem == "" {
		clock, err = time.Parse("15:04", hour+":"+minute)
	} else {
		clock, err = time.Parse("03:04PM", hour+":"+minute+strings.ToUpper(meridiem))
	}
	if err != nil {
		return time.Time{}, "", false
	}
	return time.Date(d.year, d.month, d.day, clock.Hour(), clock.Minute(), 0, 0, loc), tag, true
}
