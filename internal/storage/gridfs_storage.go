package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// gridFSStorage keeps objects in MongoDB GridFS, one GridFS bucket per
// logical bucket. Objects are served by the API under /v1/storage.
type gridFSStorage struct {
	db            *mongo.Database
	publicBaseURL string
}

func NewGridFSStorage(db *mongo.Database, publicBaseURL string) IObjectStorage {
	return &gridFSStorage{db: db, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *gridFSStorage) bucket(name string) (*gridfs.Bucket, error) {
	if !IsKnownBucket(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, name)
	}
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket %s: %w", name, err)
	}
	return b, nil
}

// Upload stores a new revision under key and then removes older revisions,
// so re-uploading a key replaces it.
func (s *gridFSStorage) Upload(ctx context.Context, bucket, key string, body io.Reader, _ int64, contentType string) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	fileID, err := b.UploadFromStream(key, body, opts)
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	older, err := s.fileIDs(ctx, b, bson.M{"filename": key, "_id": bson.M{"$ne": fileID}})
	if err != nil {
		log.Printf("Warning: could not list old revisions of %s/%s: %v", bucket, key, err)
		return nil
	}
	for _, id := range older {
		if err := b.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			log.Printf("Warning: could not delete old revision of %s/%s: %v", bucket, key, err)
		}
	}
	return nil
}

func (s *gridFSStorage) Download(ctx context.Context, bucket, key string) (*Object, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	stream, err := b.OpenDownloadStreamByName(key)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open %s/%s: %w", bucket, key, err)
	}

	file := stream.GetFile()
	obj := &Object{Body: stream, Size: file.Length, ContentType: "application/octet-stream"}
	if file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup("content_type").StringValueOK(); ok && ct != "" {
			obj.ContentType = ct
		}
	}
	return obj, nil
}

func (s *gridFSStorage) Delete(ctx context.Context, bucket, key string) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	ids, err := s.fileIDs(ctx, b, bson.M{"filename": key})
	if err != nil {
		return fmt.Errorf("failed to look up %s/%s: %w", bucket, key, err)
	}
	for _, id := range ids {
		if err := b.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}

func (s *gridFSStorage) PublicURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/v1/storage/%s/%s", s.publicBaseURL, bucket, strings.Join(segments, "/"))
}

func (s *gridFSStorage) GeneratePresignedPutURL(context.Context, string, string, string) (string, error) {
	return "", ErrPresignUnsupported
}

func (s *gridFSStorage) fileIDs(ctx context.Context, b *gridfs.Bucket, filter bson.M) ([]interface{}, error) {
	cursor, err := b.FindContext(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	ids := make([]interface{}, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids, nil
}
