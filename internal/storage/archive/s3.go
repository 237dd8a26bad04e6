package archive

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultRegion = "us-east-1"

// S3Config selects the bucket and key prefix. Endpoint is set for MinIO and
// other S3 compatible servers.
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3 keeps archive objects in one bucket under an optional prefix.
type S3 struct {
	client *s3.Client
	bucket *string
	prefix string
}

// NewS3 builds the client from static credentials. A custom endpoint
// switches to path style addressing.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket is required")
	}

	client := s3.New(s3.Options{
		Region:      cmp.Or(cfg.Region, defaultRegion),
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := &S3{client: client, bucket: aws.String(cfg.Bucket)}
	if p := strings.Trim(cfg.Prefix, "/"); p != "" {
		s.prefix = p + "/"
	}
	return s, nil
}

func (s *S3) key(path string) *string { return aws.String(s.prefix + path) }

func (s *S3) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        s.bucket,
		Key:           s.key(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", path, err)
	}
	return nil
}

func (s *S3) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: s.bucket, Key: s.key(path)})
	switch {
	case notFound(err):
		return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
	case err != nil:
		return nil, fmt.Errorf("s3 get %s: %w", path, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// List pages through ListObjectsV2 and strips the configured prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: s.bucket,
		Prefix: s.key(prefix),
	})

	paths := []string{}
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Delete is idempotent: S3 answers 204 for missing keys as well.
func (s *S3) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: s.bucket, Key: s.key(path)})
	if err != nil && !notFound(err) {
		return fmt.Errorf("s3 delete %s: %w", path, err)
	}
	return nil
}

func notFound(err error) bool {
	if err == nil {
		return false
	}
	var (
		nsk  *types.NoSuchKey
		nf   *types.NotFound
		resp *awshttp.ResponseError
	)
	switch {
	case errors.As(err, &nsk), errors.As(err, &nf):
		return true
	case errors.As(err, &resp):
		return resp.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
