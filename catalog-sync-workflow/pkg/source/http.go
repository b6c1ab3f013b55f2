package source

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retries is how many times a GET is repeated after a transport error,
	// a 429 or a 5xx. Default 0.
	Retries int

	// RetryBackoff is multiplied by the attempt number between retries
	// (default 1s)
	RetryBackoff time.Duration
}

// HTTPSource fetches the manifest and files over plain HTTP GET.
type HTTPSource struct {
	baseURL   string
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
}

var _ interfaces.Source = (*HTTPSource)(nil)

// NewHTTPSource validates opts and builds the client. Timeout bounds dialing
// and waiting for response headers only; body transfer is bounded by the
// caller's context.
func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.WithCode(err, errors.ErrInvalidArgument, "invalid BaseURL")
	}
	to := opts.Timeout
	if to <= 0 {
		to = 30 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "catalog-sync-workflow"
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: to}).DialContext,
		TLSHandshakeTimeout:   to,
		ResponseHeaderTimeout: to,
		MaxIdleConnsPerHost:   2,
		// bodies are gzip members already; let them through untouched
		DisableCompression: true,
	}

	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	if opts.Retries < 0 {
		return nil, errors.Newf(errors.ErrInvalidArgument, "retries must not be negative, got %d", opts.Retries)
	}

	return &HTTPSource{
		baseURL:   base,
		client:    &http.Client{Transport: transport},
		userAgent: ua,
		retries:   opts.Retries,
		backoff:   backoff,
	}, nil
}

// Manifest fetches and parses {base}/index.txt.
func (s *HTTPSource) Manifest(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return ParseManifest(body)
}

// Open starts the download of {base}/{name}.
func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.get(ctx, name)
}

// Describe returns the base URL.
func (s *HTTPSource) Describe() string { return s.baseURL }

func (s *HTTPSource) get(ctx context.Context, name string) (io.ReadCloser, error) {
	u := s.baseURL + "/" + url.PathEscape(name)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.WithCode(ctx.Err(), errors.ErrUpstreamUnavailable, "GET "+u)
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}

		body, retry, err := s.getOnce(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// getOnce issues one GET. retry reports whether the failure is transient.
func (s *HTTPSource) getOnce(ctx context.Context, u string) (body io.ReadCloser, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, errors.WithCode(err, errors.ErrInvalidArgument, "building request")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, errors.WithCode(err, errors.ErrUpstreamUnavailable, "GET "+u)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, errors.Newf(errors.ErrUpstreamUnavailable, "GET %s: status %d", u, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, false, errors.Newf(errors.ErrUpstreamUnavailable, "GET %s: no body", u)
	}
	return resp.Body, false, nil
}
