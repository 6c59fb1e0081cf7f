package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

const upcomingOnIndex = 20

// pageLayout wraps content in the shared page chrome.
func pageLayout(title string, content ...g.Node) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(Lang("en"),
			Head(
				Meta(Charset("UTF-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(title)),
				Script(Src("https://cdn.tailwindcss.com")),
			),
			Body(Class("bg-slate-950 font-sans antialiased text-slate-300 p-6"),
				H1(Class("text-2xl md:text-3xl font-bold text-white mb-6"), g.Text(title)),
				g.Group(content),
				P(Class("text-xs text-zinc-500 mt-10"),
					A(Href("/schedule.ics"), Class("underline"), g.Text("Calendar feed")),
				),
			),
		),
	})
}

func startCell(s storage.Show, now time.Time) g.Node {
	switch {
	case s.Start.IsZero():
		return g.Text(s.RawWhen)
	case s.SourceTZ == datetime.TagNone:
		return g.Text(s.Start.Format("Mon 02 Jan 2006") + " (time TBA)")
	case s.SourceTZ == datetime.TagLocal:
		return g.Text(s.Start.Format("Mon 02 Jan 2006 15:04") + " (local time)")
	}
	return g.Group([]g.Node{
		g.Text(s.Start.UTC().Format("Mon 02 Jan 2006 15:04 MST")),
		Span(Class("text-zinc-500 ml-2"), g.Text(humanize.RelTime(s.Start, now, "ago", "from now"))),
	})
}

func showsTable(shows []storage.Show, now time.Time) g.Node {
	if len(shows) == 0 {
		return P(Class("text-zinc-500"), g.Text("No upcoming shows."))
	}
	rows := make([]g.Node, 0, len(shows))
	for _, s := range shows {
		name := g.Text(s.Name)
		if s.Card != "" {
			name = A(Href(s.Card), Class("text-cyan-400 hover:underline"), g.Text(s.Name))
		}
		rows = append(rows, Tr(Class("border-b border-zinc-800/50"),
			Td(Class("px-4 py-3 font-medium text-white"), name),
			Td(Class("px-4 py-3 text-sm tabular-nums"), startCell(s, now)),
			Td(Class("px-4 py-3 text-sm"), g.Text(s.City)),
			Td(Class("px-4 py-3 text-sm"), g.Text(s.Venue)),
			Td(Class("px-4 py-3 text-sm"), g.If(s.Live, Span(Class("text-red-400 font-semibold"), g.Text("LIVE")))),
		))
	}
	return Table(Class("w-full mb-10"),
		THead(Tr(Class("text-left text-xs uppercase tracking-wider text-zinc-500"),
			Th(Class("px-4 py-2"), g.Text("Show")),
			Th(Class("px-4 py-2"), g.Text("Start")),
			Th(Class("px-4 py-2"), g.Text("City")),
			Th(Class("px-4 py-2"), g.Text("Venue")),
			Th(Class("px-4 py-2"), g.Text("")),
		)),
		TBody(g.Group(rows)),
	)
}

func embargoList(active []storage.Embargo, now time.Time) g.Node {
	if len(active) == 0 {
		return P(Class("text-zinc-500 mb-10"), g.Text("No active spoiler embargoes."))
	}
	items := make([]g.Node, 0, len(active))
	for _, e := range active {
		items = append(items, Li(Class("mb-1"),
			Strong(Class("text-white"), g.Text(e.Title)),
			g.Text(fmt.Sprintf(" (%s) ends %s", e.Mode, humanize.RelTime(e.EndsAt, now, "ago", "from now"))),
		))
	}
	return Ul(Class("mb-10"), g.Group(items))
}

func (s *Server) handleIndex(c echo.Context) error {
	ctx := c.Request().Context()
	now := s.Now()
	shows, err := s.DB.NextShows(ctx, storage.CollectionSchedule, now, upcomingOnIndex)
	if err != nil {
		return err
	}
	active, err := s.DB.ActiveEmbargoes(ctx, "")
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return pageLayout("Upcoming shows",
		H2(Class("text-lg font-semibold text-zinc-300 mb-4"), g.Text("Spoiler embargoes")),
		embargoList(active, now),
		H2(Class("text-lg font-semibold text-zinc-300 mb-4"), g.Text("Schedule")),
		showsTable(shows, now),
	).Render(c.Response())
}
