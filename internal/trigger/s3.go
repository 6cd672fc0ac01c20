package trigger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

// ObjectFetcher retrieves a stored object's body. The production
// implementation talks to S3; tests substitute their own.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Fetcher fetches objects with the AWS SDK.
type S3Fetcher struct {
	svc *s3.S3
}

// NewS3Fetcher builds a fetcher from the shared AWS session chain.
// An empty region defers to the environment.
func NewS3Fetcher(region string) (*S3Fetcher, error) {
	cfg := aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("trigger: aws session: %w", err)
	}
	return &S3Fetcher{svc: s3.New(sess)}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := f.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("trigger: get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("trigger: read object s3://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// ErrNoObjectRef means a stored-object event did not name a bucket and key.
var ErrNoObjectRef = errors.New("trigger: s3 event has no bucket or key")

// ParseObjectRef pulls the bucket and key out of a stored-object event.
func ParseObjectRef(event string) (bucket, key string, err error) {
	first := gjson.Get(event, "Records.0.s3")
	bucket = first.Get("bucket.name").String()
	key = first.Get("object.key").String()
	if bucket == "" || key == "" {
		return "", "", ErrNoObjectRef
	}
	return bucket, key, nil
}

// RecordsFromObject fetches the referenced object and returns one
// record per line. Objects with a .gz key are decompressed first.
func RecordsFromObject(ctx context.Context, fetcher ObjectFetcher, event string) ([]string, error) {
	bucket, key, err := ParseObjectRef(event)
	if err != nil {
		return nil, err
	}

	body, err := fetcher.Fetch(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(key, ".gz") {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("trigger: decompress s3://%s/%s: %w", bucket, key, err)
		}
		body, err = io.ReadAll(zr)
		closeErr := zr.Close()
		if err != nil {
			return nil, fmt.Errorf("trigger: decompress s3://%s/%s: %w", bucket, key, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("trigger: decompress s3://%s/%s: %w", bucket, key, closeErr)
		}
	}

	var records []string
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, line)
	}
	return records, nil
}
