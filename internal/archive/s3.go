// Package archive uploads completed task artifacts to S3 for long-term
// retention. Artifacts on disk stay authoritative; the archive is a copy.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// S3ArtifactArchiver uploads every file of a task's artifact directory under
// artifacts/<request>/<task>/ in the configured bucket.
type S3ArtifactArchiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
	log      zerolog.Logger
}

// NewS3ArtifactArchiver creates an archiver against the default AWS config.
// An empty bucket is a configuration error; callers wanting archival
// disabled pass a nil Archiver instead.
func NewS3ArtifactArchiver(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*S3ArtifactArchiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	if prefix == "" {
		prefix = "artifacts"
	}
	return &S3ArtifactArchiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
		log:      log.With().Str("component", "archive").Logger(),
	}, nil
}

// ArchiveTask walks the artifact directory and uploads every regular file.
func (a *S3ArtifactArchiver) ArchiveTask(ctx context.Context, requestID, taskID uuid.UUID, dir string) error {
	uploaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(filepath.Join(a.prefix, requestID.String(), taskID.String(), rel))

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open artifact %s: %w", path, err)
		}
		defer file.Close()

		_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   file,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive task %s: %w", taskID, err)
	}

	a.log.Info().
		Str("task_id", taskID.String()).
		Str("bucket", a.bucket).
		Int("files", uploaded).
		Msg("Artifacts archived")
	return nil
}
