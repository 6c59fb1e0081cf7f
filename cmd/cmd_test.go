package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

func TestPrintResolved(t *testing.T) {
	var buf bytes.Buffer
	if err := printResolved(&buf, []string{"SUN. MAY. 15. 2022 | DOOR 15:30 | BELL 17:00", "Coming soon"}); err != nil {
		t.Fatalf("printResolved: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"door-bell-24h", "2022-05-15T08:00:00Z", "unrecognized", "?Coming soon"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWhen(t *testing.T) {
	now := time.Date(2022, 5, 14, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		show storage.Show
		want string
	}{
		{storage.Show{RawWhen: "Coming soon"}, "Coming soon"},
		{storage.Show{Start: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), SourceTZ: datetime.TagNone}, "2022-06-01 (time TBA)"},
		{storage.Show{Start: time.Date(2022, 7, 1, 19, 30, 0, 0, time.UTC), SourceTZ: datetime.TagLocal}, "2022-07-01 19:30 (local time)"},
		{storage.Show{Start: time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC), SourceTZ: datetime.TagUTC}, "2022-05-15 08:00 UTC (1 day from now)"},
	}
	for _, tt := range tests {
		if got := when(tt.show, now); got != tt.want {
			t.Errorf("when(%+v) = %q, want %q", tt.show, got, tt.want)
		}
	}
}

func TestStatsRows(t *testing.T) {
	rows := statsRows(storage.Stats{Shows: map[storage.Collection]int{storage.CollectionSchedule: 3, storage.CollectionOther: 1}, Episodes: 2})
	if rows[0][0] != "shows/other" || rows[1][0] != "shows/schedule" || rows[1][1] != "3" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if len(rows) != 7 {
		t.Fatalf("want 7 rows, got %d", len(rows))
	}
}
