package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioClient struct {
	client *minio.Client
	bucket string
}

func newMinioClient(cfg Config) (Client, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &minioClient{client: cl, bucket: cfg.Bucket}, nil
}

func (m *minioClient) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	if !opts.Overwrite {
		// MinIO has no conditional create in the client API, so stat first.
		// Keys carry a UUID component, which keeps the stat/put window moot.
		_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%w: %s", ErrKeyExists, key)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("stat object %q: %w", key, err)
		}
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, reader, size, putOpts); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

func (m *minioClient) Close() error {
	return nil
}
