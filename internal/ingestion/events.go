package ingestion

import "time"

// IngestionEvent announces a completed ingest on the event topic. It is
// published best-effort after both writes have succeeded.
type IngestionEvent struct {
	RecordID    string    `json:"record_id"`
	StorageKey  string    `json:"storage_key"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	CameraID    string    `json:"camera_id"`
	Barcode     string    `json:"barcode,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
}
