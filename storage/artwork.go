package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"Cadenza/config"
	"Cadenza/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtworkStore keeps custom artwork images in MinIO. The object path it
// returns is the artwork reference recorded in the override map; the
// HTTP layer serves it back under /artwork/.
type ArtworkStore struct {
	client *minio.Client
	bucket string
}

// NewArtworkStore connects to MinIO and makes sure the bucket exists.
func NewArtworkStore(cfg *config.Config) (*ArtworkStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created artwork bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &ArtworkStore{client: client, bucket: cfg.MinioBucket}, nil
}

// SaveArtwork uploads one artwork image for a track and returns its
// reference path. Re-uploading for the same track replaces the object.
func (s *ArtworkStore) SaveArtwork(ctx context.Context, mediaID string, r io.Reader, size int64, contentType string) (string, error) {
	ext := extForContentType(contentType)
	objectName := path.Join("artwork", mediaID+ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artwork for %s: %w", mediaID, err)
	}
	return "/" + objectName, nil
}

// OpenArtwork opens the stored object behind an artwork reference.
func (s *ArtworkStore) OpenArtwork(ctx context.Context, ref string) (io.ReadCloser, error) {
	objectName := ref
	if len(objectName) > 0 && objectName[0] == '/' {
		objectName = objectName[1:]
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork %s: %w", ref, err)
	}
	return obj, nil
}

// RemoveArtwork deletes the object behind an artwork reference.
func (s *ArtworkStore) RemoveArtwork(ctx context.Context, ref string) error {
	objectName := ref
	if len(objectName) > 0 && objectName[0] == '/' {
		objectName = objectName[1:]
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove artwork %s: %w", ref, err)
	}
	return nil
}

func extForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
