package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes objects to a bucket, optionally under a key prefix.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
	runID  string
}

// NewS3Sink loads AWS credentials from the default chain.
func NewS3Sink(ctx context.Context, region, bucket, prefix, runID string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix, runID), nil
}

func NewS3SinkWithClient(client PutObjectAPI, bucket, prefix, runID string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, runID: runID}
}

// Put uploads body as text/csv. S3 PUT overwrites, so re-running a day
// replaces its summary.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte) error {
	fullKey := path.Join(s.prefix, key)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	}
	if s.runID != "" {
		input.Metadata = map[string]string{"run-id": s.runID}
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return &ArchiveWriteError{Key: "s3://" + s.bucket + "/" + fullKey, Err: err}
	}
	return nil
}
