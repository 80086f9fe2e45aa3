package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Logical bucket names. Backends may map them to physical names.
const (
	BucketAvatars        = "avatars"
	BucketPropertyImages = "property-images"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrUnknownBucket      = errors.New("unknown bucket")
	ErrPresignUnsupported = errors.New("presigned uploads are not supported by this storage backend")
)

// Object is a downloaded object. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// IObjectStorage stores binary objects in named buckets.
type IObjectStorage interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, bucket, key string) (*Object, error)
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
	GeneratePresignedPutURL(ctx context.Context, bucket, key, contentType string) (string, error)
}

// IsKnownBucket reports whether bucket is one of the logical buckets.
func IsKnownBucket(bucket string) bool {
	return bucket == BucketAvatars || bucket == BucketPropertyImages
}

// ObjectKey builds "<owner>/<scope>/<uuid>_<filename>" with the filename
// reduced to a safe base name.
func ObjectKey(owner utils.SixID, scope, filename string) string {
	return fmt.Sprintf("%s/%s/%s_%s", owner, scope, uuid.NewString(), SanitizeFilename(filename))
}

const maxFilenameLength = 100

// SanitizeFilename drops any directory part and replaces characters outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "/" || name == "." {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLength {
		out = out[len(out)-maxFilenameLength:]
	}
	if out == "" {
		return "file"
	}
	return out
}

// KeyOwner returns the owner segment of a key built by ObjectKey.
func KeyOwner(key string) (utils.SixID, error) {
	owner, _, ok := strings.Cut(key, "/")
	if !ok {
		return utils.SixID{}, fmt.Errorf("malformed object key %q", key)
	}
	return utils.ParseSixID(owner)
}
