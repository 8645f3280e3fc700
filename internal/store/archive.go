package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcsstorage "cloud.google.com/go/storage"
)

// DocumentArchive keeps the raw uploaded documents.
type DocumentArchive interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
}

// GCSArchive stores documents in a Cloud Storage bucket.
type GCSArchive struct {
	bucket *gcsstorage.BucketHandle
}

// NewGCSArchive wraps a bucket handle.
func NewGCSArchive(bucket *gcsstorage.BucketHandle) *GCSArchive {
	return &GCSArchive{bucket: bucket}
}

func (a *GCSArchive) Put(ctx context.Context, path, contentType string, data []byte) error {
	w := a.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Delete removes an object. A missing object is not an error.
func (a *GCSArchive) Delete(ctx context.Context, path string) error {
	err := a.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// StoredObject is a document held by MemoryArchive.
type StoredObject struct {
	ContentType string
	Data        []byte
}

// MemoryArchive is an in-process DocumentArchive for local development and tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string]StoredObject)}
}

func (a *MemoryArchive) Put(ctx context.Context, path, contentType string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.objects[path] = StoredObject{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (a *MemoryArchive) Delete(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.objects, path)
	return nil
}

// Object returns the stored object at path.
func (a *MemoryArchive) Object(path string) (StoredObject, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obj, ok := a.objects[path]
	return obj, ok
}

// Len reports how many objects are stored.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.objects)
}
