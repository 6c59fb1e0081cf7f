// Package episodes reads the podcast syndication feed.
package episodes

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/mmcdole/gofeed"

	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// Parse reads a feed document. Items keep the feed order, latest first.
func Parse(body string) ([]storage.Episode, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		ep := storage.Episode{
			Link:        strings.TrimSpace(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(html.UnescapeString(strip.StripTags(item.Description))),
		}
		if item.PublishedParsed != nil {
			ep.Published = item.PublishedParsed.UTC().Truncate(time.Second)
		}
		if item.ITunesExt != nil {
			ep.Duration = item.ITunesExt.Duration
		}
		for _, enc := range item.Enclosures {
			if enc != nil && enc.URL != "" {
				ep.File = enc.URL
				break
			}
		}
		out = append(out, ep)
	}
	return out, nil
}

// Fetch downloads and parses the feed at url.
func Fetch(ctx context.Context, client *whttp.Client, url string) ([]storage.Episode, error) {
	res, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	eps, err := Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return eps, nil
}
