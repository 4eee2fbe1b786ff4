package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Config contains the information required to talk to an object store.
// AccessKey and SecretKey act as the Swift username and API key when the
// provider is "swift"; AuthURL, Tenant and Domain are Swift-only.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	AuthURL   string
	Tenant    string
	Domain    string
}

// PutOptions carries per-object write settings.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// Overwrite permits replacing an existing key. The ingestion pipeline
	// always leaves it false; backends must then refuse to clobber.
	Overwrite bool
}

// Client represents the write capability the ingestion service expects.
type Client interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	Close() error
}

// ErrKeyExists is returned by Put when the key is already taken and
// PutOptions.Overwrite is false.
var ErrKeyExists = errors.New("objectstore: key already exists")

// New creates an object store client based on the given configuration.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("objectstore: bucket is required")
	}

	switch cfg.Provider {
	case "minio":
		return newMinioClient(cfg)
	case "s3":
		return newS3Client(ctx, cfg)
	case "swift":
		return newSwiftClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}
