package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ncw/swift/v2"
)

type swiftClient struct {
	conn      *swift.Connection
	container string
}

func newSwiftClient(cfg Config) (Client, error) {
	if cfg.AuthURL == "" {
		return nil, errors.New("swift auth url is required")
	}

	// The connection authenticates lazily on first use.
	conn := &swift.Connection{
		AuthUrl:  cfg.AuthURL,
		UserName: cfg.AccessKey,
		ApiKey:   cfg.SecretKey,
		Tenant:   cfg.Tenant,
		Domain:   cfg.Domain,
		Region:   cfg.Region,
	}

	return &swiftClient{conn: conn, container: cfg.Bucket}, nil
}

func (c *swiftClient) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	if !opts.Overwrite {
		_, _, err := c.conn.Object(ctx, c.container, key)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrKeyExists, key)
		}
		if !errors.Is(err, swift.ObjectNotFound) {
			return fmt.Errorf("stat swift object %q: %w", key, err)
		}
	}

	headers := swift.Metadata(opts.Metadata).ObjectHeaders()
	if _, err := c.conn.ObjectPut(ctx, c.container, key, reader, false, "", opts.ContentType, headers); err != nil {
		return fmt.Errorf("put swift object %q: %w", key, err)
	}
	return nil
}

func (c *swiftClient) Close() error {
	c.conn.UnAuthenticate()
	return nil
}
