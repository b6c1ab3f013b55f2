// =============================================================================
// pkg/source/source.go - Catalog File Sources
// =============================================================================
//
// A source serves two things: the manifest (index.txt, one file name per
// line) and the compressed body of each listed file. Two implementations:
//
//	HTTPSource  GET {base}/index.txt, GET {base}/{name}
//	S3Source    s3://bucket/prefix/index.txt, s3://bucket/prefix/{name}
//
// HTTPSource retries transport errors, 429 and 5xx responses up to Retries
// times with linear backoff (default 0, no retry); other 4xx responses fail
// at once. S3Source relies on the SDK's own retryer. Once retries are spent a
// failed manifest fetch fails the run and a failed file fetch skips that file
// until the next run.
//
// =============================================================================

package source

import (
	"bufio"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
)

// ManifestName is the manifest file name under the source root.
const ManifestName = "index.txt"

// Options configures New.
type Options struct {
	// URL is http(s)://host/path or s3://bucket/prefix
	URL string

	// Timeout bounds connection setup and response headers
	Timeout time.Duration

	// UserAgent is sent with HTTP requests
	UserAgent string

	// Retries is the HTTP retry budget per request
	Retries int

	// S3Region is the AWS region of the bucket
	S3Region string

	// S3Endpoint overrides the S3 endpoint (S3-compatible stores)
	S3Endpoint string
}

// New returns the source matching the URL scheme.
func New(opts Options) (interfaces.Source, error) {
	u, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrInvalidArgument, "invalid source url")
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPSource(HTTPOptions{
			BaseURL:   opts.URL,
			Timeout:   opts.Timeout,
			UserAgent: opts.UserAgent,
			Retries:   opts.Retries,
		})
	case "s3":
		return NewS3Source(S3Options{
			Bucket:   u.Host,
			Prefix:   strings.Trim(u.Path, "/"),
			Region:   opts.S3Region,
			Endpoint: opts.S3Endpoint,
		})
	}
	return nil, errors.Newf(errors.ErrInvalidArgument, "unsupported source scheme %q", u.Scheme)
}

// ParseManifest splits a manifest body into entries. Lines of length one or
// less (after dropping a trailing carriage return) are ignored; everything
// else is returned in order, eligible or not.
func ParseManifest(r io.Reader) ([]string, error) {
	var names []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if len(line) > 1 {
			names = append(names, line)
		}
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrUpstreamUnavailable, "reading manifest")
		}
	}
}
