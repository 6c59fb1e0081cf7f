package storage

import (
	"database/sql"
	"time"

	"github.com/superjcast/showwatch/pkg/datetime"
)

// DateKey derives the identity date of a show. Resolved starts use their own
// calendar date; unresolved ones fall back to the raw listing text so that the
// dates of one tour stay distinct.
func DateKey(r datetime.Result, raw string) string {
	if r.Recognized() {
		return r.DateKey()
	}
	return "?" + datetime.Normalize(raw)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullUnix(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0).UTC()
}
