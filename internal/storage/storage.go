package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// MaxImageSize bounds uploaded equipment images and avatars.
const MaxImageSize = 5 << 20

// Image keys embed a fresh uuid, so stored bytes never change.
const immutableCacheControl = "public, max-age=31536000, immutable"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Object is an open object with its metadata. Callers close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ImageKind is the top-level folder an image is filed under.
type ImageKind string

const (
	ImageEquipment ImageKind = "equipment"
	ImageAvatar    ImageKind = "avatars"
)

// Storage files images in an ObjectStorage backend under generated keys.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// ImageKey returns a fresh key for an image of ownerID, e.g.
// "equipment/<id>/<uuid>.png".
func ImageKey(kind ImageKind, ownerID, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	return path.Join(string(kind), ownerID, uuid.NewString()+ext), nil
}

// IsSupportedImage reports whether contentType can be stored as an image.
func IsSupportedImage(contentType string) bool {
	_, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

// PutImage uploads an image and returns its key.
func (s *Storage) PutImage(ctx context.Context, kind ImageKind, ownerID string, r io.Reader, size int64, contentType string) (string, error) {
	if size > MaxImageSize {
		return "", fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	key, err := ImageKey(kind, ownerID, contentType)
	if err != nil {
		return "", err
	}
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Open returns the object stored under key.
func (s *Storage) Open(ctx context.Context, key string) (Object, error) {
	if key == "" {
		return Object{}, ErrObjectNotFound
	}
	return s.backend.Get(ctx, key)
}

// Remove deletes the object stored under key. Empty keys are ignored.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
