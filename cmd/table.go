package cmd

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// when renders a show start with a relative hint.
func when(s storage.Show, now time.Time) string {
	switch {
	case s.Start.IsZero():
		return s.RawWhen
	case s.SourceTZ == datetime.TagNone:
		return s.Start.Format("2006-01-02") + " (time TBA)"
	case s.SourceTZ == datetime.TagLocal:
		return s.Start.Format("2006-01-02 15:04") + " (local time)"
	}
	return s.Start.Format("2006-01-02 15:04 MST") + " (" + humanize.RelTime(s.Start, now, "ago", "from now") + ")"
}

func showRows(shows []storage.Show, now time.Time) [][]string {
	rows := make([][]string, 0, len(shows))
	for _, s := range shows {
		live := ""
		if s.Live {
			live = "yes"
		}
		rows = append(rows, []string{s.Name, when(s, now), s.City, s.Venue, live})
	}
	return rows
}

var showHeaders = []string{"SHOW", "START (UTC)", "CITY", "VENUE", "LIVE"}
