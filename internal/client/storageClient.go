package client

import (
	"context"
	"fmt"

	appconfig "audio-embed-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3 DeleteObjects accepts at most this many keys per call.
const deleteBatchSize = 1000

type ObjectStore interface {
	// DeleteObjects removes the given keys and returns the keys that failed.
	DeleteObjects(ctx context.Context, keys []string) (failed []string, err error)
}

type s3StoreImpl struct {
	s3Client *s3.Client
	bucket   string
}

// NewObjectStore builds an S3 compatible store. An empty bucket disables it.
func NewObjectStore(ctx context.Context, storageCfg *appconfig.Storage) (ObjectStore, error) {
	if storageCfg.Bucket == "" {
		log.Info().Msg("storage bucket not set, object cleanup disabled")
		return noopStore{}, nil
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(storageCfg.Region),
	}
	if storageCfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			storageCfg.AccessKeyID,
			storageCfg.SecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if storageCfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(storageCfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &s3StoreImpl{
		s3Client: s3Client,
		bucket:   storageCfg.Bucket,
	}, nil
}

func (s *s3StoreImpl) DeleteObjects(ctx context.Context, keys []string) ([]string, error) {
	var failed []string

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		batch := keys[start:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		out, err := s.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return append(failed, keys[start:]...), fmt.Errorf("s3 delete objects: %w", err)
		}

		for _, e := range out.Errors {
			failed = append(failed, aws.ToString(e.Key))
			log.Warn().
				Str("key", aws.ToString(e.Key)).
				Str("code", aws.ToString(e.Code)).
				Str("message", aws.ToString(e.Message)).
				Msg("object delete failed")
		}
	}

	return failed, nil
}

type noopStore struct{}

func (noopStore) DeleteObjects(context.Context, []string) ([]string, error) { return nil, nil }
