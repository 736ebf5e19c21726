package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bstardust/photokit/pkg/models"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectClient is a mock implementation of ObjectClient
type MockObjectClient struct {
	mock.Mock
}

func (m *MockObjectClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func (m *MockObjectClient) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

// objectInfos returns a closed channel yielding infos, like a finished listing.
func objectInfos(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

// failingReader fails on first read, the way a missing MinIO object does.
type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }
func (f failingReader) Close() error             { return nil }

func sampleSnapshot() models.PhotoMetadata {
	md := models.NewPhotoMetadata()
	md.Width, md.Height = 4000, 3000
	md.Exif.ISO = "400"
	md.Exif.CameraMake = "Canon"
	md.GPS.Latitude = models.Float64(-12.5)
	md.GPS.LatitudeRef = "S"
	md.GPS.Longitude = models.Float64(130.8)
	md.GPS.LongitudeRef = "E"
	md.GPS.Timestamp = models.Time(time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC))
	return md
}

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestFileStoreSaveLoad(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "nested", "backups.json")
	store, err := NewFileStore(journal)
	require.NoError(t, err)
	assert.Equal(t, journal, store.Path())

	ctx := context.Background()
	_, err = store.Load(ctx, "/photos/a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := sampleSnapshot()
	require.NoError(t, store.Save(ctx, "/photos/a.jpg", snap))

	got, err := store.Load(ctx, "/photos/./a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "400", got.Exif.ISO)
	assert.InDelta(t, -12.5, *got.GPS.Latitude, 1e-9)
	assert.True(t, snap.GPS.Timestamp.Equal(*got.GPS.Timestamp))

	// A second store sees the persisted journal.
	reopened, err := NewFileStore(journal)
	require.NoError(t, err)
	got, err = reopened.Load(ctx, "/photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Canon", got.Exif.CameraMake)
	entries, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keyFor("/photos/a.jpg"), entries[0].Path)
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "backups.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "/b.jpg", sampleSnapshot()))
	require.NoError(t, store.Save(ctx, "/a.jpg", sampleSnapshot()))
	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, keyFor("/a.jpg"), entries[0].Path)

	require.NoError(t, store.Delete(ctx, "/a.jpg"))
	require.NoError(t, store.Delete(ctx, "/missing.jpg"))
	_, err = store.Load(ctx, "/a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	entries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreCorruptJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "backups.json")
	require.NoError(t, os.WriteFile(journal, []byte("{not json"), 0644))

	_, err := NewFileStore(journal)
	assert.Error(t, err)
}

func TestFileStoreCanceledContext(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "backups.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, "/a.jpg", sampleSnapshot()), context.Canceled)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFunc(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "backups.json"))
	require.NoError(t, err)
	ctx := context.Background()

	backup := Func(ctx, store, "/photos/c.jpg")
	require.NoError(t, backup(sampleSnapshot()))

	got, err := store.Load(ctx, "/photos/c.jpg")
	require.NoError(t, err)
	assert.Equal(t, 4000, got.Width)
}

func newMockStore(t *testing.T, prefix string) (*S3Store, *MockObjectClient) {
	t.Helper()
	client := new(MockObjectClient)
	client.On("BucketExists", mock.Anything, "photos").Return(true, nil)

	s, err := NewS3StoreWithClient(context.Background(), client, S3Config{Bucket: "photos", Prefix: prefix})
	require.NoError(t, err)
	s.Retry = fastRetry()
	return s, client
}

func TestNewS3StoreWithClientMissingBucket(t *testing.T) {
	client := new(MockObjectClient)
	client.On("BucketExists", mock.Anything, "gone").Return(false, nil)

	_, err := NewS3StoreWithClient(context.Background(), client, S3Config{Bucket: "gone"})
	assert.EqualError(t, err, "bucket gone does not exist")
}

func TestNewS3StoreValidation(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"})
	assert.EqualError(t, err, "S3 endpoint is required")

	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	assert.EqualError(t, err, "S3 bucket name is required")

	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.EqualError(t, err, "S3 access key and secret key are required")

	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:9000", Bucket: "My Bucket", AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "DNS compliant")

	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:9000", Bucket: "ab", AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "between 3 and 63")
}

func TestS3StoreObjectKey(t *testing.T) {
	s, _ := newMockStore(t, "/backups/")
	assert.Equal(t, "backups/photos/a.jpg.json", s.objectKey("/photos/a.jpg"))
	assert.Equal(t, "backups/photos/a.jpg.json", s.objectKey("/photos/../photos/a.jpg"))

	bare, _ := newMockStore(t, "")
	assert.Equal(t, "photos/a.jpg.json", bare.objectKey("/photos/a.jpg"))
}

func TestS3StoreSaveRetriesTransientErrors(t *testing.T) {
	s, client := newMockStore(t, "backups")

	var body []byte
	jsonOpts := mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "application/json" })
	client.On("PutObject", mock.Anything, "photos", "backups/photos/a.jpg.json", mock.Anything, mock.Anything, jsonOpts).
		Return(minio.UploadInfo{}, minio.ErrorResponse{Code: "SlowDown"}).Once()
	client.On("PutObject", mock.Anything, "photos", "backups/photos/a.jpg.json", mock.Anything, mock.Anything, jsonOpts).
		Run(func(args mock.Arguments) {
			body, _ = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{Size: 10}, nil).Once()

	require.NoError(t, s.Save(context.Background(), "/photos/a.jpg", sampleSnapshot()))
	client.AssertNumberOfCalls(t, "PutObject", 2)
	assert.Contains(t, string(body), `"snapshot"`)
	assert.Contains(t, string(body), `"Canon"`)
}

func TestS3StoreSaveStopsOnPermanentError(t *testing.T) {
	s, client := newMockStore(t, "")
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, minio.ErrorResponse{Code: "AccessDenied", Message: "Access Denied."})

	err := s.Save(context.Background(), "/a.jpg", sampleSnapshot())
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "PutObject", 1)
	assert.True(t, IsAuthError(err))
}

func TestS3StoreLoad(t *testing.T) {
	s, client := newMockStore(t, "backups")

	var buf bytes.Buffer
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			io.Copy(&buf, args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{}, nil)
	require.NoError(t, s.Save(context.Background(), "/photos/a.jpg", sampleSnapshot()))

	client.On("GetObject", mock.Anything, "photos", "backups/photos/a.jpg.json", mock.Anything).
		Return(io.NopCloser(bytes.NewReader(buf.Bytes())), nil)
	got, err := s.Load(context.Background(), "/photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "S", got.GPS.LatitudeRef)
	assert.Equal(t, 3000, got.Height)
}

func TestS3StoreLoadMissing(t *testing.T) {
	s, client := newMockStore(t, "")
	client.On("GetObject", mock.Anything, "photos", "missing.jpg.json", mock.Anything).
		Return(failingReader{err: minio.ErrorResponse{Code: "NoSuchKey"}}, nil)

	_, err := s.Load(context.Background(), "/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreLoadFailure(t *testing.T) {
	s, client := newMockStore(t, "")
	client.On("GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("dial tcp: refused"))

	_, err := s.Load(context.Background(), "/a.jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestS3StoreDelete(t *testing.T) {
	s, client := newMockStore(t, "backups")
	client.On("RemoveObject", mock.Anything, "photos", "backups/photos/a.jpg.json", mock.Anything).
		Return(minio.ErrorResponse{Code: "ServiceUnavailable"}).Once()
	client.On("RemoveObject", mock.Anything, "photos", "backups/photos/a.jpg.json", mock.Anything).
		Return(nil).Once()

	require.NoError(t, s.Delete(context.Background(), "/photos/a.jpg"))
	client.AssertNumberOfCalls(t, "RemoveObject", 2)
}

func TestS3StoreList(t *testing.T) {
	s, client := newMockStore(t, "backups")

	entryJSON := func(path string) io.ReadCloser {
		data, err := json.Marshal(Entry{Path: path, Snapshot: sampleSnapshot()})
		require.NoError(t, err)
		return io.NopCloser(bytes.NewReader(data))
	}
	prefixed := mock.MatchedBy(func(o minio.ListObjectsOptions) bool { return o.Prefix == "backups/" && o.Recursive })
	client.On("ListObjects", mock.Anything, "photos", prefixed).Return(objectInfos(
		minio.ObjectInfo{Key: "backups/photos/z.jpg.json"},
		minio.ObjectInfo{Key: "backups/notes.txt"},
		minio.ObjectInfo{Key: "backups/photos/b.jpg.json"},
	))
	client.On("GetObject", mock.Anything, "photos", "backups/photos/z.jpg.json", mock.Anything).
		Return(entryJSON("/photos/z.jpg"), nil)
	client.On("GetObject", mock.Anything, "photos", "backups/photos/b.jpg.json", mock.Anything).
		Return(entryJSON("/photos/b.jpg"), nil)

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/photos/b.jpg", entries[0].Path)
	assert.Equal(t, "/photos/z.jpg", entries[1].Path)
	assert.Equal(t, "Canon", entries[0].Snapshot.Exif.CameraMake)
	client.AssertNotCalled(t, "GetObject", mock.Anything, "photos", "backups/notes.txt", mock.Anything)
}

func TestS3StoreListFailure(t *testing.T) {
	s, client := newMockStore(t, "")
	client.On("ListObjects", mock.Anything, "photos", mock.Anything).
		Return(objectInfos(minio.ObjectInfo{Err: minio.ErrorResponse{Code: "AccessDenied"}}))

	_, err := s.List(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	}, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	cfg := fastRetry()
	cfg.MaxRetries = 2
	err = RetryWithBackoff(context.Background(), "op", func() error {
		calls++
		return errors.New("request timeout")
	}, cfg)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "op failed after")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryWithBackoff(ctx, "op", func() error { return nil }, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.False(t, cfg.IsRetryable(nil))
	assert.False(t, cfg.IsRetryable(context.Canceled))
	assert.True(t, cfg.IsRetryable(minio.ErrorResponse{Code: "InternalError"}))
	assert.False(t, cfg.IsRetryable(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.True(t, cfg.IsRetryable(errors.New("service unavailable")))
	assert.False(t, cfg.IsRetryable(errors.New("invalid argument")))
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, IsNotFoundError(errors.New("boom")))
}
