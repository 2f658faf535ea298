package minio

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

const exportContentType = "application/json"

// ObjectMetadata describes one stored export.
type ObjectMetadata struct {
	Bucket       string
	ObjectKey    string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ExportStore keeps recommendation export bundles under the configured
// prefix of the export bucket.  Locations are returned as "bucket/key".
type ExportStore struct {
	client *MinIOClient
	logger logging.Logger
}

func NewExportStore(client *MinIOClient, log logging.Logger) *ExportStore {
	return &ExportStore{client: client, logger: logging.OrNop(log).Named("export-store")}
}

func (s *ExportStore) objectKey(name string) string {
	return path.Join(s.client.config.Prefix, strings.TrimPrefix(name, "/"))
}

// SaveExport uploads data as a JSON object and returns its location.
func (s *ExportStore) SaveExport(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" || len(data) == 0 {
		return "", ErrInvalidRequest
	}
	if s.client.isClosed() {
		return "", ErrMinIOClientClosed
	}
	key := s.objectKey(name)
	bucket := s.client.Bucket()

	info, err := s.client.GetClient().PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  exportContentType,
		UserMetadata: map[string]string{"kind": "recommendation-export"},
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "upload failed")
	}
	s.logger.Debug("Export uploaded",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return bucket + "/" + key, nil
}

// Stat returns metadata for a stored export.
func (s *ExportStore) Stat(ctx context.Context, name string) (*ObjectMetadata, error) {
	key := s.objectKey(name)
	info, err := s.client.GetClient().StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "stat failed")
	}
	return &ObjectMetadata{
		Bucket:       s.client.Bucket(),
		ObjectKey:    key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// List returns up to limit exports whose name starts with prefix.  A limit
// of 0 means 1000.
func (s *ExportStore) List(ctx context.Context, prefix string, limit int) ([]ObjectMetadata, error) {
	if limit <= 0 {
		limit = 1000
	}
	full := s.objectKey(prefix)
	if prefix == "" && s.client.config.Prefix != "" {
		full += "/"
	}
	ch := s.client.GetClient().ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    full,
		Recursive: true,
	})

	var out []ObjectMetadata
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "list failed")
		}
		if len(out) == limit {
			continue
		}
		out = append(out, ObjectMetadata{
			Bucket:       s.client.Bucket(),
			ObjectKey:    obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// URL returns a presigned download link for a stored export.
func (s *ExportStore) URL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	return s.client.GeneratePresignedGetURL(ctx, s.objectKey(name), expiry)
}

func (s *ExportStore) Delete(ctx context.Context, name string) error {
	if err := s.client.GetClient().RemoveObject(ctx, s.client.Bucket(), s.objectKey(name), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "delete failed")
	}
	return nil
}
