package notify

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

const (
	ColorShow    = 0xE60012
	ColorEmbargo = 0x2F3136
	ColorPodcast = 0x8E44AD
	ColorProfile = 0xF1C40F
)

// Zone is one line of the time display.
type Zone struct {
	Label string
	Loc   *time.Location
}

// DisplayZones lists the zones every resolved instant is shown in.
var DisplayZones = []Zone{
	{Label: "Pacific", Loc: mustLoad("America/Los_Angeles")},
	{Label: "Eastern", Loc: datetime.Eastern},
	{Label: "UK", Loc: mustLoad("Europe/London")},
	{Label: "Japan", Loc: datetime.Tokyo},
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// ProfileFieldOrder is the display order of profile attributes.
var ProfileFieldOrder = []string{"unit", "height", "weight", "birth_year", "birthplace", "blood_type", "debut", "finisher", "theme", "blog", "twitter"}

// Formatter builds summaries. SiteDomain is the registrable domain of the
// promotion's site; card links elsewhere are labelled as ticket links.
type Formatter struct {
	SiteDomain string
	Zones      []Zone
}

// NewFormatter derives the site domain from the listing base URL.
func NewFormatter(baseURL string) *Formatter {
	return &Formatter{SiteDomain: registrable(baseURL), Zones: DisplayZones}
}

func registrable(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	d, err := publicsuffix.Domain(u.Hostname())
	if err != nil {
		return u.Hostname()
	}
	return d
}

// Times renders an instant according to how much zone information it has.
func (f *Formatter) Times(t time.Time, tag datetime.Tag) string {
	switch {
	case t.IsZero():
		return "TBA"
	case tag == datetime.TagNone:
		return t.UTC().Format("Mon 02 Jan 2006") + " (time TBA)"
	case tag == datetime.TagLocal:
		return t.UTC().Format("Mon 02 Jan 2006 15:04") + " (local time)"
	}
	lines := make([]string, 0, len(f.Zones))
	for _, z := range f.Zones {
		lines = append(lines, t.In(z.Loc).Format("Mon 02 Jan 2006 15:04 MST"))
	}
	return strings.Join(lines, "\n")
}

// CardField labels a card link by where it points.
func (f *Formatter) CardField(card string) (Field, bool) {
	if card == "" {
		return Field{}, false
	}
	d := registrable(card)
	if d == "" || d == f.SiteDomain {
		return Field{Name: "Card", Value: card}, true
	}
	return Field{Name: "Tickets (" + d + ")", Value: card}, true
}

// Show summarizes a show.
func (f *Formatter) Show(s storage.Show) *Summary {
	sum := &Summary{Title: s.Name, URL: s.Card, Thumbnail: s.Thumb, Color: ColorShow}
	when := f.Times(s.Start, s.SourceTZ)
	if s.Start.IsZero() && s.RawWhen != "" {
		when = s.RawWhen
	}
	sum.Fields = append(sum.Fields, Field{Name: "Date", Value: when})
	if s.City != "" {
		sum.Fields = append(sum.Fields, Field{Name: "City", Value: s.City, Inline: true})
	}
	if s.Venue != "" {
		sum.Fields = append(sum.Fields, Field{Name: "Venue", Value: s.Venue, Inline: true})
	}
	if c, ok := f.CardField(s.Card); ok {
		sum.Fields = append(sum.Fields, c)
	}
	return sum
}

// Embargo summarizes an active embargo.
func (f *Formatter) Embargo(e storage.Embargo) *Summary {
	return &Summary{
		Title:     e.Title,
		Thumbnail: e.Thumb,
		Color:     ColorEmbargo,
		Fields:    []Field{{Name: "Spoiler embargo ends", Value: f.Times(e.EndsAt, datetime.TagUTC)}},
	}
}

// Episode summarizes a podcast episode.
func (f *Formatter) Episode(e storage.Episode) *Summary {
	sum := &Summary{Title: e.Title, URL: e.Link, Description: e.Description, Color: ColorPodcast}
	if !e.Published.IsZero() {
		sum.Fields = append(sum.Fields, Field{Name: "Published", Value: e.Published.Format("Mon 02 Jan 2006"), Inline: true})
	}
	if e.Duration != "" {
		sum.Fields = append(sum.Fields, Field{Name: "Duration", Value: e.Duration, Inline: true})
	}
	if e.File != "" {
		sum.Fields = append(sum.Fields, Field{Name: "Listen", Value: e.File})
	}
	return sum
}

// Profile summarizes a roster entry.
func (f *Formatter) Profile(p storage.Profile) *Summary {
	sum := &Summary{Title: p.Name, URL: p.Link, Thumbnail: p.Render, Description: p.Bio, Color: ColorProfile}
	title := cases.Title(language.English)
	seen := map[string]bool{}
	add := func(k string) {
		v, ok := p.Attributes[k]
		if !ok || v == "" || seen[k] {
			return
		}
		seen[k] = true
		sum.Fields = append(sum.Fields, Field{Name: title.String(strings.ReplaceAll(k, "_", " ")), Value: v, Inline: true})
	}
	for _, k := range ProfileFieldOrder {
		add(k)
	}
	var rest []string
	for k := range p.Attributes {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		add(k)
	}
	if r := []rune(sum.Description); len(r) > 1024 {
		sum.Description = string(r[:1021]) + "..."
	}
	return sum
}
