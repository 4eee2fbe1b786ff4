package ingestion

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/fieldcam/pkg/storage/docstore"
	"github.com/your-org/fieldcam/pkg/storage/objectstore"
)

// contentTypeExts is the accepted media allow-list and the extension each
// type contributes to the storage key.
var contentTypeExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// EventPublisher is the slice of the Kafka producer the service uses. A nil
// publisher disables event announcements.
type EventPublisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// Service runs the ingest pipeline: validate, fingerprint, derive a key,
// write the object, upsert the metadata record, announce the event.
type Service struct {
	store    objectstore.Client
	records  docstore.Client
	producer EventPublisher
	logger   *zap.Logger
	tracer   trace.Tracer
	account  string
	bucket   string
}

type Params struct {
	Store    objectstore.Client
	Records  docstore.Client
	Producer EventPublisher
	Logger   *zap.Logger
	// Account and Bucket identify where objects land; the metadata record
	// points at the stored object by value.
	Account string
	Bucket  string
}

// IngestInput is one upload as extracted from the multipart request.
type IngestInput struct {
	ContentType string
	Meta        []byte
	Payload     []byte
}

type IngestResult struct {
	RecordID    string
	StorageKey  string
	ContentHash string
	SizeBytes   int64
	CameraID    string
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		records:  p.Records,
		producer: p.Producer,
		logger:   p.Logger,
		tracer:   otel.Tracer("fieldcam/ingestion"),
		account:  p.Account,
		bucket:   p.Bucket,
	}
}

// Ingest validates the input and performs the two-phase write. The metadata
// upsert only starts after the object write has succeeded, so every record
// that exists points at a durably stored object. A metadata failure is fatal
// to the request even though the object remains stored.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingestion.Ingest")
	defer span.End()

	contentType := normalizeContentType(in.ContentType)
	ext, ok := contentTypeExts[contentType]
	if !ok {
		return nil, NewError(KindUnsupportedMedia, fmt.Sprintf("content type %q is not accepted", in.ContentType))
	}

	var decoded any
	if err := json.Unmarshal(in.Meta, &decoded); err != nil {
		return nil, WrapError(KindMalformedInput, "metadata field is not valid JSON", err)
	}
	envelope, ok := decoded.(map[string]any)
	if !ok {
		return nil, NewError(KindMalformedInput, "metadata field must be a JSON object")
	}

	if len(in.Payload) == 0 {
		return nil, NewError(KindMalformedInput, "file body is empty")
	}

	sum := md5.Sum(in.Payload)
	fingerprint := hex.EncodeToString(sum[:])

	cameraID := envelopeString(envelope, "camera_id")
	if cameraID == "" {
		cameraID = "unknown"
	}
	barcode := envelopeString(envelope, "barcode")

	now := time.Now().UTC()
	key := storageKey(now, cameraID, ext)
	span.SetAttributes(
		attribute.String("fieldcam.camera_id", cameraID),
		attribute.String("fieldcam.storage_key", key),
		attribute.Int("fieldcam.size_bytes", len(in.Payload)),
	)

	putCtx, putSpan := s.tracer.Start(ctx, "objectstore.Put")
	err := s.store.Put(putCtx, key, bytes.NewReader(in.Payload), int64(len(in.Payload)), objectstore.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"camera_id":    cameraID,
			"content_hash": fingerprint,
		},
	})
	putSpan.End()
	if err != nil {
		return nil, WrapError(KindStorageWrite, "object write failed", err)
	}

	recordID := uuid.NewString()
	rec := docstore.Record{
		ID:               recordID,
		StorageAccount:   s.account,
		StorageContainer: s.bucket,
		StorageKey:       key,
		SizeBytes:        int64(len(in.Payload)),
		ContentType:      contentType,
		ContentHash:      fingerprint,
		CameraID:         cameraID,
		Barcode:          barcode,
		Envelope:         envelope,
		IngestedAt:       now,
	}

	upsertCtx, upsertSpan := s.tracer.Start(ctx, "docstore.Upsert")
	err = s.records.Upsert(upsertCtx, rec)
	upsertSpan.End()
	if err != nil {
		// The object already exists at key; log it so the record can be
		// reconciled later.
		s.logger.Error("metadata write failed after object write",
			zap.String("storage_key", key),
			zap.String("record_id", recordID),
			zap.Error(err))
		return nil, WrapError(KindMetadataWrite, "metadata write failed", err)
	}

	s.publishEvent(ctx, IngestionEvent{
		RecordID:    recordID,
		StorageKey:  key,
		ContentHash: fingerprint,
		SizeBytes:   rec.SizeBytes,
		ContentType: contentType,
		CameraID:    cameraID,
		Barcode:     barcode,
		IngestedAt:  now,
	})

	s.logger.Info("image ingested",
		zap.String("record_id", recordID),
		zap.String("storage_key", key),
		zap.String("camera_id", cameraID),
		zap.Int64("size_bytes", rec.SizeBytes))

	return &IngestResult{
		RecordID:    recordID,
		StorageKey:  key,
		ContentHash: fingerprint,
		SizeBytes:   rec.SizeBytes,
		CameraID:    cameraID,
	}, nil
}

// publishEvent announces the ingest best-effort: a broker failure is logged
// and never changes the HTTP response.
func (s *Service) publishEvent(ctx context.Context, event IngestionEvent) {
	if s.producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshal ingestion event", zap.Error(err))
		return
	}

	headers := map[string]string{
		"event_type": "image.ingested",
		"record_id":  event.RecordID,
	}
	if err := s.producer.Publish(ctx, []byte(event.RecordID), payload, headers); err != nil {
		s.logger.Warn("publish ingestion event",
			zap.String("record_id", event.RecordID),
			zap.Error(err))
	}
}

// Close releases the producer and both store clients.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if closer, ok := s.producer.(interface{ Close(context.Context) error }); ok {
		errs = append(errs, closer.Close(ctx))
	}
	if s.records != nil {
		errs = append(errs, s.records.Close(ctx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// normalizeContentType lowercases the declared type and drops parameters
// such as "; charset=".
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// envelopeString projects an envelope field to a string, stringifying
// non-string scalars the way the record keeps them.
func envelopeString(envelope map[string]any, field string) string {
	v, ok := envelope[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
