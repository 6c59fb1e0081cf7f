// Package broadcast reads the streaming service's monthly broadcast schedule
// and flags the matching scheduled shows as broadcast live.
package broadcast

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/width"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// Deferred marks a row whose broadcast time is not announced yet.
const Deferred = "後日配信"

// Slot is one announced live broadcast.
type Slot struct {
	At  time.Time
	Raw string
}

var (
	yearRe  = regexp.MustCompile(`^\s*(\d{4})`)
	dateRe  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
	clockRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// Parse extracts broadcast slots from the schedule page. The page lists the
// current month and, when published, the next one; each month appears once
// per language and only the Japanese tables (first and third) are read. The
// year comes from the month headings.
func Parse(r io.Reader) (slots []Slot, skipped []string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, err
	}
	tables := doc.Find("div#tab1 table")
	if tables.Length() == 0 {
		return nil, nil, fmt.Errorf("no schedule tables found")
	}
	var years []string
	doc.Find("h1.ttl-schedule.menu-ja").Each(func(_ int, h *goquery.Selection) {
		if m := yearRe.FindStringSubmatch(fold(h.Text())); m != nil {
			years = append(years, m[1])
		}
	})

	for month, idx := range []int{0, 2} {
		if idx >= tables.Length() || month >= len(years) {
			break
		}
		year, _ := strconv.Atoi(years[month])
		tables.Eq(idx).Find("tr").Each(func(i int, tr *goquery.Selection) {
			if i == 0 {
				return
			}
			var cells []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, fold(strings.TrimSpace(td.Text())))
			})
			if len(cells) < 2 {
				return
			}
			raw := cells[0] + " " + cells[1]
			if strings.Contains(cells[0], Deferred) || strings.Contains(cells[1], Deferred) {
				skipped = append(skipped, raw)
				return
			}
			at, ok := slotTime(year, cells[0], cells[1])
			if !ok {
				skipped = append(skipped, raw)
				return
			}
			slots = append(slots, Slot{At: at, Raw: raw})
		})
	}
	return slots, skipped, nil
}

// fold turns full-width digits and punctuation into their ASCII forms.
func fold(s string) string { return width.Fold.String(s) }

func slotTime(year int, date, clock string) (time.Time, bool) {
	// Dates read like "5/15(日)".
	dm := dateRe.FindStringSubmatch(strings.SplitN(date, "(", 2)[0])
	cm := clockRe.FindStringSubmatch(clock)
	if dm == nil || cm == nil {
		return time.Time{}, false
	}
	mon, _ := strconv.Atoi(dm[1])
	day, _ := strconv.Atoi(dm[2])
	hour, _ := strconv.Atoi(cm[1])
	minute, _ := strconv.Atoi(cm[2])
	if mon < 1 || mon > 12 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(mon), day, hour, minute, 0, 0, datetime.Tokyo)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Marker flips the live flag of a scheduled show.
type Marker interface {
	MarkLive(ctx context.Context, at time.Time) (storage.Show, bool, error)
}

// Correlator applies broadcast slots to the show repository.
type Correlator struct {
	Store Marker
	Log   logrus.FieldLogger
}

// Apply marks live every scheduled show starting exactly at a slot. Slots
// without a match, or matching a show already live, change nothing. It
// returns the shows newly marked.
func (c *Correlator) Apply(ctx context.Context, slots []Slot) ([]storage.Show, error) {
	var marked []storage.Show
	for _, s := range slots {
		show, ok, err := c.Store.MarkLive(ctx, s.At)
		if err != nil {
			return marked, fmt.Errorf("marking %s live: %w", s.At.Format(time.RFC3339), err)
		}
		if ok {
			c.Log.Infof("New broadcast found: %s (%s)", show.Name, show.DateKey)
			marked = append(marked, show)
		}
	}
	return marked, nil
}

// Fetch downloads and parses the schedule page.
func Fetch(ctx context.Context, client *whttp.Client, url string, log logrus.FieldLogger) ([]Slot, error) {
	res, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching broadcast schedule: %w", err)
	}
	slots, skipped, err := Parse(strings.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing broadcast schedule: %w", err)
	}
	for _, s := range skipped {
		log.Debugf("No broadcast time set for %q, skipping", s)
	}
	return slots, nil
}
