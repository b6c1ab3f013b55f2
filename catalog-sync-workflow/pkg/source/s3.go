package source

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
)

// S3Options configures an S3Source.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	// Client replaces the session-built client when set
	Client s3iface.S3API
}

// S3Source reads a mirrored catalog from a bucket prefix.
type S3Source struct {
	client s3iface.S3API
	bucket string
	prefix string
}

var _ interfaces.Source = (*S3Source)(nil)

// NewS3Source creates an S3Source. Credentials come from the default AWS
// provider chain.
func NewS3Source(opts S3Options) (*S3Source, error) {
	if opts.Bucket == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "s3 bucket is required")
	}

	client := opts.Client
	if client == nil {
		cfg := aws.NewConfig()
		if opts.Region != "" {
			cfg = cfg.WithRegion(opts.Region)
		}
		if opts.Endpoint != "" {
			cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrInvalidArgument, "creating aws session")
		}
		client = s3.New(sess)
	}

	return &S3Source{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// Manifest reads and parses {prefix}/index.txt.
func (s *S3Source) Manifest(ctx context.Context) ([]string, error) {
	body, err := s.Open(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return ParseManifest(body)
}

// Open streams {prefix}/{name}.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.Newf(errors.ErrUpstreamUnavailable, "s3://%s/%s: no such key", s.bucket, key)
		}
		return nil, errors.WithCode(err, errors.ErrUpstreamUnavailable, "s3://"+s.bucket+"/"+key)
	}
	if out.Body == nil {
		return nil, errors.Newf(errors.ErrUpstreamUnavailable, "s3://%s/%s: no body", s.bucket, key)
	}
	return out.Body, nil
}

// Describe returns the s3:// location.
func (s *S3Source) Describe() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

func (s *S3Source) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
