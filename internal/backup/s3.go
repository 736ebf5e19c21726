package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config represents the bucket snapshots are uploaded to
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// ObjectClient is the subset of the MinIO client S3Store needs.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// minioObjects adapts *minio.Client to ObjectClient.
type minioObjects struct {
	*minio.Client
}

func (m minioObjects) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := m.Client.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// S3Store keeps one JSON object per snapshot in an S3 bucket
type S3Store struct {
	client ObjectClient
	config S3Config
	Retry  RetryConfig
	now    func() time.Time
}

// NewS3Store connects to the configured endpoint and checks the bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("S3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 access key and secret key are required")
	}
	if err := validateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	s, err := NewS3StoreWithClient(ctx, minioObjects{client}, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to S3 endpoint %s, bucket %s for metadata backups", endpoint, cfg.Bucket)
	return s, nil
}

// NewS3StoreWithClient builds a store on an existing client.
func NewS3StoreWithClient(ctx context.Context, client ObjectClient, cfg S3Config) (*S3Store, error) {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}
	return &S3Store{
		client: client,
		config: cfg,
		Retry:  DefaultRetryConfig(),
		now:    time.Now,
	}, nil
}

// Save uploads the snapshot of path, retrying transient failures.
func (s *S3Store) Save(ctx context.Context, photoPath string, snapshot models.PhotoMetadata) error {
	key := s.objectKey(photoPath)
	data, err := json.Marshal(Entry{Path: keyFor(photoPath), Snapshot: snapshot, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = RetryWithBackoff(ctx, "snapshot upload "+key, func() error {
		info, err := s.client.PutObject(ctx, s.config.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return err
		}
		logger.Debug("Uploaded snapshot to %s (%d bytes, etag: %s)", key, info.Size, info.ETag)
		return nil
	}, s.Retry)
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return nil
}

// Load downloads the snapshot of path.
func (s *S3Store) Load(ctx context.Context, photoPath string) (models.PhotoMetadata, error) {
	e, err := s.readEntry(ctx, s.objectKey(photoPath), photoPath)
	if err != nil {
		return models.PhotoMetadata{}, err
	}
	return e.Snapshot, nil
}

// Delete removes the snapshot object of path, retrying transient failures.
// S3 reports success for keys that do not exist.
func (s *S3Store) Delete(ctx context.Context, photoPath string) error {
	key := s.objectKey(photoPath)
	err := RetryWithBackoff(ctx, "snapshot delete "+key, func() error {
		return s.client.RemoveObject(ctx, s.config.Bucket, key, minio.RemoveObjectOptions{})
	}, s.Retry)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	logger.Debug("Deleted snapshot %s", key)
	return nil
}

// List downloads every snapshot under the configured prefix.
func (s *S3Store) List(ctx context.Context) ([]Entry, error) {
	prefix := strings.Trim(s.config.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	var entries []Entry
	for obj := range s.client.ListObjects(ctx, s.config.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list snapshots in %s: %w", s.config.Bucket, obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		e, err := s.readEntry(ctx, obj.Key, obj.Key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *S3Store) readEntry(ctx context.Context, key, name string) (Entry, error) {
	rc, err := s.client.GetObject(ctx, s.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Entry{}, s.loadError(name, err)
	}
	defer rc.Close()

	// MinIO reports a missing key on first read, not on GetObject.
	data, err := io.ReadAll(rc)
	if err != nil {
		return Entry{}, s.loadError(name, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to parse snapshot %s: %w", key, err)
	}
	return e, nil
}

func (s *S3Store) loadError(photoPath string, err error) error {
	if IsNotFoundError(err) {
		return fmt.Errorf("%s: %w", photoPath, ErrNotFound)
	}
	if IsAuthError(err) {
		return fmt.Errorf("access to bucket %s denied: %w", s.config.Bucket, err)
	}
	return fmt.Errorf("failed to download snapshot: %w", err)
}

// objectKey maps a photo path to <prefix>/<clean path>.json.
func (s *S3Store) objectKey(photoPath string) string {
	key := strings.TrimPrefix(filepath.ToSlash(keyFor(photoPath)), "/")
	// Windows volume names are not valid key characters
	key = strings.ReplaceAll(key, ":", "")
	key += ".json"

	prefix := strings.Trim(s.config.Prefix, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// validateBucketName applies the S3 naming rules: 3 to 63 lowercase
// letters, digits, dots or hyphens.
func validateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name %q must be between 3 and 63 characters", name)
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' && c != '.' {
			return fmt.Errorf("bucket name %q must be DNS compliant", name)
		}
	}
	return nil
}
