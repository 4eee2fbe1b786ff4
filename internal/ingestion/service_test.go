package ingestion

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/fieldcam/pkg/storage/docstore"
	"github.com/your-org/fieldcam/pkg/storage/objectstore"
)

type putCall struct {
	key     string
	payload []byte
	size    int64
	opts    objectstore.PutOptions
}

type fakeStore struct {
	mu   sync.Mutex
	puts []putCall
	err  error
}

func (f *fakeStore) Put(ctx context.Context, key string, reader io.Reader, size int64, opts objectstore.PutOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.puts = append(f.puts, putCall{key: key, payload: payload, size: size, opts: opts})
	return nil
}

func (f *fakeStore) Close() error { return nil }

type fakeRecords struct {
	mu      sync.Mutex
	records []docstore.Record
	err     error
}

func (f *fakeRecords) Upsert(ctx context.Context, rec docstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecords) Close(ctx context.Context) error { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return nil
}

func newTestService(store *fakeStore, records *fakeRecords, producer EventPublisher) *Service {
	return NewService(Params{
		Store:    store,
		Records:  records,
		Producer: producer,
		Logger:   zap.NewNop(),
		Account:  "localhost:9000",
		Bucket:   "images",
	})
}

var jpegKeyPattern = regexp.MustCompile(`^ingest/\d{4}/\d{2}/\d{2}/cam1/[0-9a-f-]{36}\.jpg$`)

func TestIngest_Success(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	payload := []byte("jpeg bytes")
	result, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1","barcode":"123"}`),
		Payload:     payload,
	})
	require.NoError(t, err)

	sum := md5.Sum(payload)
	wantHash := hex.EncodeToString(sum[:])
	assert.Equal(t, wantHash, result.ContentHash)
	assert.Regexp(t, jpegKeyPattern, result.StorageKey)
	assert.NotEmpty(t, result.RecordID)
	assert.Equal(t, int64(len(payload)), result.SizeBytes)

	require.Len(t, store.puts, 1)
	put := store.puts[0]
	assert.Equal(t, result.StorageKey, put.key)
	assert.Equal(t, payload, put.payload)
	assert.Equal(t, int64(len(payload)), put.size)
	assert.Equal(t, "image/jpeg", put.opts.ContentType)
	assert.False(t, put.opts.Overwrite)
	assert.Equal(t, "cam1", put.opts.Metadata["camera_id"])
	assert.Equal(t, wantHash, put.opts.Metadata["content_hash"])

	require.Len(t, records.records, 1)
	rec := records.records[0]
	assert.Equal(t, result.RecordID, rec.ID)
	assert.Equal(t, "localhost:9000", rec.StorageAccount)
	assert.Equal(t, "images", rec.StorageContainer)
	assert.Equal(t, result.StorageKey, rec.StorageKey)
	assert.Equal(t, wantHash, rec.ContentHash)
	assert.Equal(t, "cam1", rec.CameraID)
	assert.Equal(t, "123", rec.Barcode)
	assert.Equal(t, "cam1", rec.Envelope["camera_id"])
}

func TestIngest_ContentTypeParametersAccepted(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	result, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "Image/PNG; charset=binary",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("png bytes"),
	})
	require.NoError(t, err)
	assert.True(t, len(result.StorageKey) > 4 && result.StorageKey[len(result.StorageKey)-4:] == ".png")
	require.Len(t, store.puts, 1)
	assert.Equal(t, "image/png", store.puts[0].opts.ContentType)
}

func TestIngest_UnsupportedContentType(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	_, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "application/pdf",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("pdf bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, KindUnsupportedMedia, AsError(err).Kind)
	assert.Empty(t, store.puts)
	assert.Empty(t, records.records)
}

func TestIngest_MetaMustBeJSONObject(t *testing.T) {
	cases := map[string]string{
		"not json": `{camera_id}`,
		"array":    `[1,2,3]`,
		"scalar":   `"cam1"`,
		"null":     `null`,
		"empty":    ``,
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			records := &fakeRecords{}
			svc := newTestService(store, records, nil)

			_, err := svc.Ingest(context.Background(), IngestInput{
				ContentType: "image/jpeg",
				Meta:        []byte(meta),
				Payload:     []byte("jpeg bytes"),
			})
			require.Error(t, err)
			assert.Equal(t, KindMalformedInput, AsError(err).Kind)
			assert.Empty(t, store.puts)
			assert.Empty(t, records.records)
		})
	}
}

func TestIngest_EmptyPayload(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	_, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     nil,
	})
	require.Error(t, err)
	assert.Equal(t, KindMalformedInput, AsError(err).Kind)
	assert.Empty(t, store.puts)
	assert.Empty(t, records.records)
}

func TestIngest_StorageFailureSkipsMetadata(t *testing.T) {
	store := &fakeStore{err: errors.New("bucket unreachable")}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	_, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, KindStorageWrite, AsError(err).Kind)
	assert.Empty(t, records.records)
}

func TestIngest_MetadataFailureIsFatal(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{err: errors.New("collection unreachable")}
	svc := newTestService(store, records, nil)

	_, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, KindMetadataWrite, AsError(err).Kind)
	// The object write happened before the metadata failure.
	assert.Len(t, store.puts, 1)
}

func TestIngest_SameBytesDistinctKeysAndIDs(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	payload := []byte("identical bytes")
	first, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     payload,
	})
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam2"}`),
		Payload:     payload,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.NotEqual(t, first.StorageKey, second.StorageKey)
	assert.NotEqual(t, first.RecordID, second.RecordID)
}

func TestIngest_CameraProjection(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	svc := newTestService(store, records, nil)

	// Missing camera id falls back to "unknown"; numeric ids are stringified.
	result, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"barcode":42}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.CameraID)
	assert.Contains(t, result.StorageKey, "/unknown/")
	require.Len(t, records.records, 1)
	assert.Equal(t, "42", records.records[0].Barcode)

	result, err = svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"../evil cam"}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.NotContains(t, result.StorageKey, "..")
	assert.NotContains(t, result.StorageKey, " ")
	// The record keeps the id as received; only the key is sanitized.
	assert.Equal(t, "../evil cam", result.CameraID)
}

func TestIngest_EventPublished(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	producer := &fakePublisher{}
	svc := newTestService(store, records, producer)

	result, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.NoError(t, err)
	require.Len(t, producer.keys, 1)
	assert.Equal(t, result.RecordID, producer.keys[0])
	assert.Contains(t, string(producer.values[0]), result.StorageKey)
}

func TestIngest_PublishFailureDoesNotFailIngest(t *testing.T) {
	store := &fakeStore{}
	records := &fakeRecords{}
	producer := &fakePublisher{err: errors.New("brokers down")}
	svc := newTestService(store, records, producer)

	_, err := svc.Ingest(context.Background(), IngestInput{
		ContentType: "image/jpeg",
		Meta:        []byte(`{"camera_id":"cam1"}`),
		Payload:     []byte("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.Len(t, store.puts, 1)
	assert.Len(t, records.records, 1)
}
