// Package storage mirrors historicos snapshots to an S3-compatible Spaces
// bucket so initial loads survive the loss of a host.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type SpacesService struct {
	client *s3.Client
	bucket string
	region string
	root   string
	logger *slog.Logger
}

func NewSpacesService(key, secret, region, bucket, root string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &SpacesService{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
		root:   strings.Trim(root, "/"),
		logger: slog.With(slog.String("service", "spaces")),
	}, nil
}

// MirrorSnapshot uploads one historicos file under <root>/<filename>,
// overwriting the previous copy.
func (s *SpacesService) MirrorSnapshot(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot %s: %w", localPath, err)
	}
	defer f.Close()

	key := filepath.Base(localPath)
	if s.root != "" {
		key = s.root + "/" + key
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to mirror snapshot %s: %w", key, err)
	}

	s.logger.Info("Snapshot mirrored",
		slog.String("bucket", s.bucket),
		slog.String("key", key))
	return nil
}
