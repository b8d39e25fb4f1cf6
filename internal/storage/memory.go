package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryStorage keeps objects in process; presigned URLs point at BaseURL.
type MemoryStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{BaseURL: baseURL, objects: map[string]Object{}}
}

func (m *MemoryStorage) UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(io.LimitReader(reader, size+1))
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return fmt.Errorf("size mismatch: declared %d, read %d", size, len(b))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: b, ContentType: contentType}
	return nil
}

func (m *MemoryStorage) RemoveFile(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	q := url.Values{}
	q.Set("expires", time.Now().Add(expires).UTC().Format(time.RFC3339))
	return m.BaseURL + "/" + key + "?" + q.Encode(), nil
}

// Get returns a stored object.
func (m *MemoryStorage) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}
