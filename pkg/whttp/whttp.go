// Package whttp fetches the pages, feeds and APIs the scrapers and notifiers talk to.
package whttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrUnexpectedStatus is returned by Get for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status code")

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

type Header struct {
	Name  string
	Value string
}

type Request struct {
	URL     string
	Method  string
	Body    []byte
	Headers []Header
}

type Response struct {
	StatusCode int
	Title      string
	Body       string
}

// Options configures a Client.
type Options struct {
	// Retries is the number of retries on transient failures. Zero means one attempt.
	Retries   int
	UserAgent string
}

// Client wraps a retrying HTTP client.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
}

func New(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Retries
	rc.Logger = log.New(io.Discard, "", 0)
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{http: rc, userAgent: ua}
}

// StandardClient exposes the client as a plain *http.Client.
func (c *Client) StandardClient() *http.Client { return c.http.StandardClient() }

// Get fetches url and fails on any non-2xx status.
func (c *Client) Get(ctx context.Context, url string, headers ...Header) (*Response, error) {
	res, err := c.Do(ctx, &Request{URL: url, Method: http.MethodGet, Headers: headers})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, res.StatusCode, url)
	}
	return res, nil
}

// Do sends the request and returns the decoded body whatever the status.
func (c *Client) Do(ctx context.Context, wReq *Request) (*Response, error) {
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	var body interface{}
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Broadcast listings are served in Japanese encodings; decode to UTF-8.
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wReq.URL, err)
	}
	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	wRes := &Response{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if title, ok := getHTMLTitle(wRes.Body); ok {
			wRes.Title = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
