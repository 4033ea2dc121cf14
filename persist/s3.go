package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pthm-cable/lifesim/config"
)

// S3Archive uploads snapshots to an S3-compatible bucket (AWS S3 or MinIO).
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive creates an archive from cfg. Explicit access keys take
// precedence over the default credentials chain. optFns adjust the client,
// for example to swap its HTTP transport.
func NewS3Archive(ctx context.Context, cfg config.S3Config, optFns ...func(*s3.Options)) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key for a run's snapshot at tick.
func (a *S3Archive) Key(runID string, tick int) string {
	return path.Join(a.prefix, runID, fmt.Sprintf("snapshot_%010d.json", tick))
}

// Save implements Sink.
func (a *S3Archive) Save(ctx context.Context, snap *WorldSnapshot) error {
	_, err := a.Put(ctx, snap)
	return err
}

// Put uploads snap and returns its key.
func (a *S3Archive) Put(ctx context.Context, snap *WorldSnapshot) (string, error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}
	key := a.Key(snap.RunID, snap.Tick)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Get downloads the snapshot stored under key.
func (a *S3Archive) Get(ctx context.Context, key string) (*WorldSnapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return Decode(data)
}
