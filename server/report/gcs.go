package report

import (
	"context"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// StorageGCS is a Google Cloud Storage-based blob store
type StorageGCS struct {
	bucketName string
	bucket     *gcs.BucketHandle
	isPublic   bool
	log        logs.Log
}

func NewStorageGCS(log logs.Log, bucketName string, isPublic bool) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Writing reports to GCS bucket %v", bucketName)
	return &StorageGCS{
		bucketName: bucketName,
		bucket:     client.Bucket(bucketName),
		isPublic:   isPublic,
		log:        log,
	}, nil
}

func (s *StorageGCS) WriteFile(name string) (io.WriteCloser, error) {
	w := s.bucket.Object(name).NewWriter(context.Background())
	w.ContentType = contentType(name)
	return w, nil
}

func (s *StorageGCS) ReadFile(name string) (*File, error) {
	r, err := s.bucket.Object(name).NewReader(context.Background())
	if err != nil {
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) DeleteFile(name string) error {
	return s.bucket.Object(name).Delete(context.Background())
}

func (s *StorageGCS) URL(name string) (string, error) {
	if !s.isPublic {
		return "", ErrNoPublicUrl
	}
	return "https://storage.googleapis.com/" + s.bucketName + "/" + name, nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".jpg"):
		return "image/jpeg"
	}
	return "application/octet-stream"
}
