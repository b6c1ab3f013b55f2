package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"Basic", "products_01.json.gz\nproducts_02.json.gz\n", []string{"products_01.json.gz", "products_02.json.gz"}},
		{"NoTrailingNewline", "products_01.json.gz", []string{"products_01.json.gz"}},
		{"CRLF", "products_01.json.gz\r\nproducts_02.json.gz\r\n", []string{"products_01.json.gz", "products_02.json.gz"}},
		{"ShortLinesDropped", "\n\nx\nab\n \n", []string{"ab"}},
		{"IneligibleKept", "a.json.gz\nproducts_01.json.gz\n", []string{"a.json.gz", "products_01.json.gz"}},
		{"Empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest(strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newUpstream(t *testing.T, files map[string]string, status map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/data/")
		if code, ok := status[name]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource(t *testing.T) {
	srv := newUpstream(t, map[string]string{
		"index.txt":           "products_01.json.gz\nproducts_02.json.gz\n",
		"products_01.json.gz": "gzip-bytes",
	}, map[string]int{"products_02.json.gz": http.StatusServiceUnavailable, "empty.json.gz": http.StatusNoContent})

	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL + "/data/"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/data", src.Describe())

	ctx := context.Background()
	names, err := src.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"products_01.json.gz", "products_02.json.gz"}, names)

	body, err := src.Open(ctx, "products_01.json.gz")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "gzip-bytes", string(data))

	for _, name := range []string{"products_02.json.gz", "missing.json.gz", "empty.json.gz"} {
		_, err = src.Open(ctx, name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable), name)
	}
}

func TestHTTPSourceManifestUnavailable(t *testing.T) {
	srv := newUpstream(t, nil, map[string]int{"index.txt": http.StatusInternalServerError})
	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL + "/data"})
	require.NoError(t, err)

	_, err = src.Manifest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
}

func TestHTTPSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src, err := NewHTTPSource(HTTPOptions{BaseURL: url})
	require.NoError(t, err)
	_, err = src.Manifest(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
}

func TestHTTPSourceRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "products_01.json.gz\n")
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = src.Manifest(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), hits.Load())

	hits.Store(0)
	src, err = NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Retries: 2, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	names, err := src.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"products_01.json.gz"}, names)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPSourceDoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Retries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	_, err = src.Open(context.Background(), "products_01.json.gz")
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewHTTPSourceRequiresBase(t *testing.T) {
	_, err := NewHTTPSource(HTTPOptions{BaseURL: "  "})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	keys    []string
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(in.Key)
	f.keys = append(f.keys, aws.StringValue(in.Bucket)+"/"+key)
	body, ok := f.objects[key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"mirror/off/index.txt":           "products_01.json.gz\n",
		"mirror/off/products_01.json.gz": "payload",
	}}
	src, err := NewS3Source(S3Options{Bucket: "catalog", Prefix: "/mirror/off/", Client: fake})
	require.NoError(t, err)
	assert.Equal(t, "s3://catalog/mirror/off", src.Describe())

	ctx := context.Background()
	names, err := src.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"products_01.json.gz"}, names)

	body, err := src.Open(ctx, "products_01.json.gz")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "payload", string(data))

	_, err = src.Open(ctx, "products_02.json.gz")
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
	assert.Equal(t, []string{
		"catalog/mirror/off/index.txt",
		"catalog/mirror/off/products_01.json.gz",
		"catalog/mirror/off/products_02.json.gz",
	}, fake.keys)
}

func TestNewSelectsByScheme(t *testing.T) {
	src, err := New(Options{URL: "https://example.com/food/data/json"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = New(Options{URL: "s3://bucket/prefix", S3Region: "eu-west-1"})
	require.NoError(t, err)
	assert.IsType(t, &S3Source{}, src)
	assert.Equal(t, "s3://bucket/prefix", src.Describe())

	_, err = New(Options{URL: "ftp://example.com"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
