package report

import (
	"errors"
	"io"
	"time"

	"github.com/cyclopcam/gatecount/server/config"
	"github.com/cyclopcam/logs"
)

var ErrNoPublicUrl = errors.New("Storage has no public URL")

// Storage is an abstraction of a blob store (eg GCS)
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error

	// URL returns a public URL of the file, or ErrNoPublicUrl
	URL(name string) (string, error)
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

// NewStorage opens the blob store selected by the config
func NewStorage(log logs.Log, cfg config.StorageConfig) (Storage, error) {
	if cfg.GCS != nil {
		return NewStorageGCS(log, cfg.GCS.Bucket, cfg.GCS.Public)
	} else if cfg.Filesystem != nil {
		return NewStorageFS(log, cfg.Filesystem.Root)
	}
	return nil, config.ErrNoStorage
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
