package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of storage.Client. Bodies of uploads whose expectation
// returns no error are kept and can be read back with Object.
type Client struct {
	mock.Mock

	mu      sync.Mutex
	objects map[string][]byte
}

func (m *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *Client) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	if args.Error(1) == nil && reader != nil {
		body, err := io.ReadAll(reader)
		if err != nil {
			return minio.UploadInfo{}, err
		}
		m.mu.Lock()
		if m.objects == nil {
			m.objects = make(map[string][]byte)
		}
		m.objects[bucketName+"/"+objectName] = body
		m.mu.Unlock()
	}
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

// Object returns the body uploaded to bucket/name.
func (m *Client) Object(bucket, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[bucket+"/"+name]
	return body, ok
}

// ObjectNames lists every stored object as bucket/name.
func (m *Client) ObjectNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for k := range m.objects {
		names = append(names, k)
	}
	return names
}
