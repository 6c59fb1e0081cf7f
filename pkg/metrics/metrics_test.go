package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDisabledIsNoop(t *testing.T) {
	m := New(false)
	m.ObserveTick("shows", time.Second, nil)
	if m.Handler() != nil {
		t.Fatalf("disabled recorder should not expose a handler")
	}
}

func TestEnabledExposesMetrics(t *testing.T) {
	m := New(true)
	m.ObserveTick("shows", time.Second, errors.New("boom"))
	m.IncDispatch("discord", nil)
	m.SetActiveEmbargoes("primary", 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`showwatch_task_ticks_total{outcome="error",task="shows"} 1`,
		`showwatch_dispatches_total{outcome="ok",sink="discord"} 1`,
		`showwatch_active_embargoes{mode="primary"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}

	// A second recorder has its own registry.
	_ = New(true)
}
