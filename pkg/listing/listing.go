// Package listing turns the promotion's event listing pages into show candidates.
package listing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// PlaceholderThumb is the site-relative poster used when an event has no art.
const PlaceholderThumb = "/wp-content/themes/njpw-en/images/common/noimage_poster.jpg"

// Field locates one optional attribute of a listed date. An empty Attr reads
// the element text.
type Field struct {
	Name     string
	Selector string
	Attr     string
}

// DateFields is looked up inside each listed date. A missing element leaves
// the attribute empty.
var DateFields = []Field{
	{Name: "city", Selector: "p.city"},
	{Name: "venue", Selector: "p.venue"},
	{Name: "when", Selector: "p.date"},
	{Name: "card", Selector: "a", Attr: "href"},
}

// Unrecognized is a date whose text matched no known shape.
type Unrecognized struct {
	Event string
	Raw   string
}

// Page is the result of normalizing one listing page.
type Page struct {
	Shows        []storage.Show
	Unrecognized []Unrecognized
}

// Normalizer builds show candidates for one collection.
type Normalizer struct {
	// BaseURL resolves relative thumbnails and card links.
	BaseURL      string
	Collection   storage.Collection
	SpoilerHours int
}

// Extract reads the fields of sel through the locator table.
func Extract(sel *goquery.Selection, fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		el := sel.Find(f.Selector).First()
		if el.Length() == 0 {
			continue
		}
		var v string
		if f.Attr == "" {
			v = el.Text()
		} else {
			v, _ = el.Attr(f.Attr)
		}
		out[f.Name] = strings.Join(strings.Fields(v), " ")
	}
	return out
}

// Parse normalizes one listing page. Each div.event holds the event name and
// poster, and one li per date. Identical input yields identical output.
func (n *Normalizer) Parse(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, err
	}
	var page Page
	doc.Find("div.event").Each(func(_ int, ev *goquery.Selection) {
		name := strings.Join(strings.Fields(ev.Find("h3").First().Text()), " ")
		if name == "" {
			return
		}
		thumb, _ := ev.Find("img").First().Attr("src")
		thumb = storage.NormalizeLink(n.BaseURL, thumb)

		ev.Find("li").Each(func(_ int, li *goquery.Selection) {
			f := Extract(li, DateFields)
			raw := f["when"]
			res := datetime.Resolve(raw)
			if !res.Recognized() {
				page.Unrecognized = append(page.Unrecognized, Unrecognized{Event: name, Raw: raw})
			}
			show := storage.Show{
				Collection:   n.Collection,
				Name:         name,
				DateKey:      storage.DateKey(res, raw),
				SourceTZ:     datetime.TagNone,
				RawWhen:      raw,
				City:         f["city"],
				Venue:        f["venue"],
				Thumb:        thumb,
				Card:         storage.NormalizeLink(n.BaseURL, f["card"]),
				SpoilerHours: n.SpoilerHours,
			}
			if res.Recognized() {
				show.Start = res.Start.UTC()
				show.SourceTZ = res.Tag
			}
			page.Shows = append(page.Shows, show)
		})
	})
	return page, nil
}

// Fetch downloads and normalizes pages 1..pages of a listing path such as
// "/schedule". Any fetch failure abandons the whole pass.
func (n *Normalizer) Fetch(ctx context.Context, client *whttp.Client, path string, pages int, log logrus.FieldLogger) ([]storage.Show, error) {
	var shows []storage.Show
	for i := 1; i <= pages; i++ {
		url := fmt.Sprintf("%s%s?pageNum=%d", strings.TrimRight(n.BaseURL, "/"), path, i)
		res, err := client.Get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, err)
		}
		page, err := n.Parse(strings.NewReader(res.Body))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", url, err)
		}
		for _, u := range page.Unrecognized {
			log.WithField("event", u.Event).Warnf("Unrecognized date format: %q", u.Raw)
		}
		log.Debugf("%s: %d dates", url, len(page.Shows))
		shows = append(shows, page.Shows...)
	}
	return shows, nil
}
