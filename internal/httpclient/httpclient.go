package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/http2"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	t := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	// Relays sit behind CDNs that speak h2; panels themselves are usually
	// plain HTTP/1.1 and are unaffected.
	_ = http2.ConfigureTransport(t)
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &brotliTransport{inner: t},
	}
}

// Default returns the shared tuned HTTP client used by the fetcher, the
// playlist importer and the recommendation service.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout sharing the same
// transport stack as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultClient.Transport,
	}
}

// brotliTransport advertises br alongside gzip and decodes both bodies
// transparently. Setting Accept-Encoding by hand turns off net/http's own
// gzip handling, so this transport owns gzip decoding too. Several public
// relays answer br when offered.
type brotliTransport struct {
	inner http.RoundTripper
}

func (b *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := b.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		decodeBody(resp, brotli.NewReader(resp.Body))
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		decodeBody(resp, gr)
	}
	return resp, nil
}

func decodeBody(resp *http.Response, r io.Reader) {
	resp.Body = &decodedBody{r: r, c: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
}

type decodedBody struct {
	r io.Reader
	c io.Closer
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *decodedBody) Close() error               { return b.c.Close() }
