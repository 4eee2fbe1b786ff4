package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
)

// stormClient keeps records in an embedded bbolt database. Useful for edge
// boxes and development where no managed document store is reachable.
type stormClient struct {
	db *storm.DB
}

func newStormClient(cfg Config) (Client, error) {
	if cfg.Path == "" {
		return nil, errors.New("docstore: storm path is required")
	}

	db, err := storm.Open(cfg.Path, storm.Codec(json.Codec))
	if err != nil {
		return nil, fmt.Errorf("open storm database: %w", err)
	}

	if err := db.Init(&Record{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init record index: %w", err)
	}

	return &stormClient{db: db}, nil
}

func (s *stormClient) Upsert(ctx context.Context, rec Record) error {
	// storm Save replaces the stored value for an existing ID.
	if err := s.db.Save(&rec); err != nil {
		return fmt.Errorf("save record %q: %w", rec.ID, err)
	}
	return nil
}

func (s *stormClient) Close(ctx context.Context) error {
	return s.db.Close()
}
