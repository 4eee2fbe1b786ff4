package docstore

import (
	"context"
	"fmt"
	"time"
)

// Record is the metadata document written once per ingest. It points at the
// stored object by value (account, container, key) and keeps the client
// envelope verbatim next to the projected camera fields.
type Record struct {
	ID               string         `bson:"_id" json:"id" storm:"id"`
	StorageAccount   string         `bson:"storage_account" json:"storage_account"`
	StorageContainer string         `bson:"storage_container" json:"storage_container"`
	StorageKey       string         `bson:"storage_key" json:"storage_key" storm:"index"`
	SizeBytes        int64          `bson:"size_bytes" json:"size_bytes"`
	ContentType      string         `bson:"content_type" json:"content_type"`
	ContentHash      string         `bson:"content_hash" json:"content_hash" storm:"index"`
	CameraID         string         `bson:"camera_id" json:"camera_id" storm:"index"`
	Barcode          string         `bson:"barcode,omitempty" json:"barcode,omitempty"`
	Envelope         map[string]any `bson:"envelope" json:"envelope"`
	IngestedAt       time.Time      `bson:"ingested_at" json:"ingested_at"`
}

// Client represents the capability the ingestion service expects from the
// metadata store. Upsert replaces any record with the same ID, so a retried
// write of the same logical ingest stays single.
type Client interface {
	Upsert(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Config selects and configures a record store backend. URI, Database and
// Collection drive mongo; Path drives the embedded storm store.
type Config struct {
	Provider   string
	URI        string
	Database   string
	Collection string
	Path       string
	Timeout    time.Duration
}

// New creates a record store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "mongo":
		return newMongoClient(cfg)
	case "storm", "embedded":
		return newStormClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported record store provider: %s", cfg.Provider)
	}
}
