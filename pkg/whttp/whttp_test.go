package whttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "showwatch-test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><head><title>\n Schedule </title></head><body>ok</body></html>")
	}))
	defer srv.Close()

	c := New(Options{UserAgent: "showwatch-test"})
	res, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Title != "Schedule" {
		t.Fatalf("title = %q", res.Title)
	}
}

func TestGetDecodesCharset(t *testing.T) {
	// "日程" in Shift_JIS.
	sjis := []byte{0x93, 0xfa, 0x92, 0xf6}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=Shift_JIS")
		_, _ = w.Write(sjis)
	}))
	defer srv.Close()

	res, err := New(Options{}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Body != "日程" {
		t.Fatalf("body = %q", res.Body)
	}
}

func TestGetUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Options{}).Get(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
}

func TestDoPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || string(b) != `{"a":1}` || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("got %s %q %q", r.Method, b, r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res, err := New(Options{}).Do(context.Background(), &Request{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Body:    []byte(`{"a":1}`),
		Headers: []Header{{Name: "Content-Type", Value: "application/json"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", res.StatusCode)
	}
}
