package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/pagewalk/internal/model"
)

const (
	// DefaultTimeout bounds a single fetch including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a page body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "pagewalk/1.0 (+https://github.com/nao1215/pagewalk)"
)

// Fetcher fetches a single URL without following redirects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Outcome
}

// Outcome is the classified result of one fetch.
type Outcome struct {
	// Status is the HTTP status, or model.StatusUnreachable.
	Status int

	// Location is the raw Location header of a redirect response.
	Location string

	// FinalLocation is where a redirect-following request landed.
	FinalLocation string

	// Body is the decoded body of a 200 response.
	Body []byte

	// ContentType is the Content-Type header of a 200 response.
	ContentType string

	// Digest is the hex SHA3-256 of Body.
	Digest string

	// Truncated is true when the body exceeded the size cap.
	Truncated bool

	// Err describes a failure. It wraps one of the package's sentinel errors.
	Err error
}

// IsRedirect reports whether the outcome is a redirect the crawler follows.
func (o Outcome) IsRedirect() bool {
	return model.IsRedirectStatus(o.Status) && o.Location != ""
}

// IsOK reports whether the outcome is a 200 response.
func (o Outcome) IsOK() bool {
	return o.Status == http.StatusOK
}

// Failed reports whether no usable HTTP response was obtained.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Record converts the outcome into the persisted form for url.
func (o Outcome) Record(url string) model.PageRecord {
	rec := model.PageRecord{URL: url, Status: o.Status}
	if o.IsRedirect() {
		rec.Location = o.Location
		rec.FinalLocation = o.FinalLocation
	}
	return rec
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client        *http.Client
	followClient  *http.Client
	userAgent     string
	timeout       time.Duration
	maxBodySize   int64
	finalLocation bool
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize sets the body size cap in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithFinalLocation enables a second, redirect-following request for every
// redirect to record where the chain ends.
func WithFinalLocation(enabled bool) Option {
	return func(f *HTTPFetcher) {
		f.finalLocation = enabled
	}
}

// NewHTTPFetcher creates an HTTPFetcher. client must not follow redirects;
// clients from NewHTTPClient satisfy this.
func NewHTTPFetcher(client *http.Client, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:        client,
		followClient:  FollowingClient(client),
		userAgent:     DefaultUserAgent,
		timeout:       DefaultTimeout,
		maxBodySize:   DefaultMaxBodySize,
		finalLocation: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one non-following GET for url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) Outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := f.newRequest(fetchCtx, url)
	if err != nil {
		return Outcome{Status: model.StatusUnreachable, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{Status: model.StatusUnreachable, Err: classify(ctx, err)}
	}
	defer resp.Body.Close()

	out := Outcome{Status: resp.StatusCode}

	switch {
	case model.IsRedirectStatus(resp.StatusCode) && resp.Header.Get("Location") != "":
		out.Location = resp.Header.Get("Location")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // draining for connection reuse
		if f.finalLocation {
			out.FinalLocation = f.resolveFinalLocation(ctx, url)
		}
	case resp.StatusCode == http.StatusOK:
		out.ContentType = resp.Header.Get("Content-Type")
		body, truncated, err := f.readBody(resp)
		if err != nil {
			out.Err = fmt.Errorf("%w: %w", ErrBody, classify(ctx, err))
			return out
		}
		out.Body = body
		out.Truncated = truncated
		sum := sha3.Sum256(body)
		out.Digest = hex.EncodeToString(sum[:])
	}

	return out
}

// resolveFinalLocation follows the redirect chain starting at url and
// returns the URL it ends on, or "" when the chain cannot be walked.
func (f *HTTPFetcher) resolveFinalLocation(ctx context.Context, url string) string {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := f.newRequest(ctx, url)
	if err != nil {
		return ""
	}
	resp, err := f.followClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // draining for connection reuse

	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}

func (f *HTTPFetcher) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	return req, nil
}

// readBody reads and decodes the body, stopping at maxBodySize bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, bool, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > f.maxBodySize {
		return body[:f.maxBodySize], true, nil
	}
	return body, false, nil
}

// classify maps a transport error onto the package's sentinel errors.
// parent is the crawl context, used to tell a stop request from a timeout.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
