// Package storage writes avatar and banner objects to a bucket and derives
// their keys and public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes is the largest accepted image (5 MiB).
const DefaultMaxUploadBytes int64 = 5 << 20

const (
	// AvatarPlaceholder and BannerPlaceholder are served when no object exists.
	AvatarPlaceholder = "/placeholder.svg"
	BannerPlaceholder = "/placeholder-banner.svg"
)

// ErrInvalidMedia is wrapped by every validation failure.
var ErrInvalidMedia = errors.New("invalid media")

// Store is an object store bucket.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// ValidateImage accepts non-empty image/* payloads up to maxBytes.
func ValidateImage(contentType string, size, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	switch {
	case !strings.HasPrefix(strings.ToLower(contentType), "image/"):
		return fmt.Errorf("%w: file must be an image", ErrInvalidMedia)
	case size <= 0:
		return fmt.Errorf("%w: file is empty", ErrInvalidMedia)
	case size > maxBytes:
		return fmt.Errorf("%w: file size must be less than %dMB", ErrInvalidMedia, maxBytes>>20)
	}
	return nil
}

// ObjectKey derives a fresh key for an upload:
//
//	avatar → {user}/{unix_ms}-{rand}.{ext}
//	banner → {user}/banner/{unix_ms}-{rand}.{ext}
//
// The extension comes from fileName, lower-cased, defaulting to jpg.
func ObjectKey(banner bool, userID, fileName string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		ext = "jpg"
	}
	name := fmt.Sprintf("%d-%s.%s", now.UnixMilli(), uuid.NewString()[:8], ext)
	if banner {
		return userID + "/banner/" + name
	}
	return userID + "/" + name
}

// PublicURL is a pure function of the key:
// {base}/storage/v1/object/public/{bucket}/{key}.
func PublicURL(baseURL, bucket, key string) string {
	return strings.TrimRight(baseURL, "/") + "/storage/v1/object/public/" + bucket + "/" + key
}

// CacheBusted appends t={version} so a replaced image is not served stale.
func CacheBusted(url string, version int64) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%d", url, sep, version)
}
