package listing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// Locator finds a labelled value on a profile detail page: the element
// matching Tag whose text is Label, then the first following Next element.
type Locator struct {
	Field string
	Tag   string
	Label string
	Next  string
	Attr  string
}

var ProfileLocators = []Locator{
	{Field: "height", Tag: "dt", Label: "HEIGHT", Next: "dd"},
	{Field: "weight", Tag: "dt", Label: "WEIGHT", Next: "dd"},
	{Field: "birth_year", Tag: "dt", Label: "YEAR OF BIRTH", Next: "dd"},
	{Field: "birthplace", Tag: "dt", Label: "PLACE OF BIRTH", Next: "dd"},
	{Field: "blood_type", Tag: "dt", Label: "BLOOD TYPE", Next: "dd"},
	{Field: "debut", Tag: "dt", Label: "DEBUT", Next: "dd"},
	{Field: "finisher", Tag: "dt", Label: "FINISH HOLD", Next: "dd"},
	{Field: "theme", Tag: "dt", Label: "THEME SONG", Next: "dd"},
	{Field: "blog", Tag: "dt", Label: "BLOG", Next: "dd"},
	{Field: "unit", Tag: "p", Label: "UNIT", Next: "p"},
	{Field: "twitter", Tag: "dt", Label: "TWITTER", Next: "a", Attr: "href"},
}

// ParseRoster lists the profiles of the roster page with name, link and render.
func ParseRoster(r io.Reader, baseURL string) ([]storage.Profile, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	var out []storage.Profile
	seen := map[string]bool{}
	doc.Find("ul.wrestlerList li").Each(func(_ int, li *goquery.Selection) {
		name := strings.Join(strings.Fields(li.Find("p.name").First().Text()), " ")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		link, _ := li.Find("a").First().Attr("href")
		render, _ := li.Find("img").First().Attr("src")
		out = append(out, storage.Profile{
			Name:   name,
			Link:   storage.NormalizeLink(baseURL, link),
			Render: storage.NormalizeLink(baseURL, render),
		})
	})
	return out, nil
}

// ParseDetail fills the bio and attributes of p from its detail page.
func ParseDetail(r io.Reader, p *storage.Profile) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return err
	}
	detail := doc.Find("div.profileDetail").First()
	if detail.Length() == 0 {
		return fmt.Errorf("no profile detail for %s", p.Name)
	}
	p.Attributes = map[string]string{}
	for _, l := range ProfileLocators {
		if v := locate(detail, l); v != "" {
			p.Attributes[l.Field] = v
		}
	}
	p.Bio = strings.TrimSpace(detail.Find("div.textBox").First().Text())
	return nil
}

func locate(root *goquery.Selection, l Locator) string {
	label := root.Find(l.Tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.Text()), l.Label)
	}).First()
	if label.Length() == 0 {
		return ""
	}
	following := label.NextAll()
	target := following.Filter(l.Next).First()
	if target.Length() == 0 {
		target = following.Find(l.Next).First()
	}
	if target.Length() == 0 {
		return ""
	}
	if l.Attr != "" {
		v, _ := target.Attr(l.Attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(target.Text()), " ")
}

// FetchProfiles downloads the roster and every detail page. A failed detail
// page keeps the roster fields so the profile is not taken for removed.
func FetchProfiles(ctx context.Context, client *whttp.Client, baseURL, path string, log logrus.FieldLogger) ([]storage.Profile, error) {
	url := strings.TrimRight(baseURL, "/") + path
	res, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	profiles, err := ParseRoster(strings.NewReader(res.Body), baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	for i := range profiles {
		p := &profiles[i]
		if p.Link == "" {
			continue
		}
		detail, err := client.Get(ctx, p.Link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithField("profile", p.Name).Warnf("Could not fetch profile page: %v", err)
			continue
		}
		if err := ParseDetail(strings.NewReader(detail.Body), p); err != nil {
			log.WithField("profile", p.Name).Warn(err)
		}
	}
	return profiles, nil
}
