package coupon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// ObjectGetter is the subset of the S3 client used by the loader.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// bucketLoader reads coupon files stored under a key prefix of one bucket.
type bucketLoader struct {
	client ObjectGetter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Loader creates a bucket loader using the default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("coupon bucket configured")

	return NewS3LoaderWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3LoaderWithClient creates a bucket loader around an existing client.
func NewS3LoaderWithClient(client ObjectGetter, bucket, prefix string, logger zerolog.Logger) Loader {
	return &bucketLoader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "coupon-bucket").Logger(),
	}
}

// objectKey places name under the prefix. Names cannot climb out of it.
func (l *bucketLoader) objectKey(name string) string {
	return strings.TrimPrefix(path.Join(l.prefix, path.Clean("/"+name)), "/")
}

// Load reads the coupon file name from the bucket. A missing object
// reports fs.ErrNotExist, like a missing local file.
func (l *bucketLoader) Load(ctx context.Context, name string) (*Set, error) {
	key := l.objectKey(name)
	source := "s3://" + l.bucket + "/" + key

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("coupon file %s: %w", source, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get coupon file %s: %w", source, err)
	}
	defer result.Body.Close()

	set, err := readCoupons(ctx, result.Body, source)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("source", source).
		Int("coupons_loaded", set.Size()).
		Msg("coupon file loaded")

	return set, nil
}

// fallbackLoader reads from primary and retries on fallback when that fails.
type fallbackLoader struct {
	primary  Loader
	fallback Loader
	logger   zerolog.Logger
}

// NewFallbackLoader returns a loader that tries primary first. A nil primary
// leaves only fallback.
func NewFallbackLoader(primary, fallback Loader, logger zerolog.Logger) Loader {
	if primary == nil {
		return fallback
	}
	return &fallbackLoader{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "coupon-fallback-loader").Logger(),
	}
}

// Load returns the fallback's error when both loaders fail.
func (l *fallbackLoader) Load(ctx context.Context, name string) (*Set, error) {
	set, err := l.primary.Load(ctx, name)
	if err == nil {
		return set, nil
	}

	l.logger.Warn().
		Err(err).
		Str("file", name).
		Msg("primary coupon source failed, trying fallback")

	return l.fallback.Load(ctx, name)
}
