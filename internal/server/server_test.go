package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/metrics"
	"github.com/superjcast/showwatch/pkg/storage"
)

func newServer(t *testing.T, user, pass string) (*Server, *storage.DB) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(db, metrics.New(true).Handler(), user, pass, log)
	s.Now = func() time.Time { return time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s, db
}

func get(t *testing.T, s *Server, path string, auth ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t, "admin", "secret")
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestShowsAndCalendar(t *testing.T) {
	s, db := newServer(t, "", "")
	ctx := context.Background()
	_, err := db.UpsertShow(ctx, storage.Show{
		Collection: storage.CollectionSchedule, Name: "Dontaku", DateKey: "2022-05-15",
		Start: time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC), SourceTZ: datetime.TagUTC,
	})
	require.NoError(t, err)

	rec := get(t, s, "/api/shows")
	require.Equal(t, http.StatusOK, rec.Code)
	var shows []storage.Show
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shows))
	require.Len(t, shows, 1)
	assert.Equal(t, "Dontaku", shows[0].Name)

	rec = get(t, s, "/api/shows?collection=result")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = get(t, s, "/api/shows?collection=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, "/schedule.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Dontaku")
}

func TestEmbargoes(t *testing.T) {
	s, db := newServer(t, "", "")
	_, _, err := db.CreateEmbargo(context.Background(), storage.Embargo{
		Title: "Dontaku", Mode: storage.ModePrimary, EndsAt: time.Date(2022, 5, 15, 22, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rec := get(t, s, "/api/embargoes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Dontaku"`)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newServer(t, "admin", "secret")
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/stats").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/stats", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/stats", "admin", "secret").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newServer(t, "", "")
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIndexPage(t *testing.T) {
	s, db := newServer(t, "", "")
	ctx := context.Background()
	_, err := db.UpsertShow(ctx, storage.Show{
		Collection: storage.CollectionSchedule, Name: "Dontaku", DateKey: "2022-05-15",
		Start: time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC), SourceTZ: datetime.TagUTC,
		Card: "https://www.njpw1972.com/card/1",
	})
	require.NoError(t, err)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, `<a href="https://www.njpw1972.com/card/1"`)
	assert.Contains(t, body, "Dontaku")
	assert.Contains(t, body, "No active spoiler embargoes.")
}
