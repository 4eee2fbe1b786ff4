package ingestion

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStorageKeyFormat(t *testing.T) {
	at := time.Date(2026, 8, 21, 13, 37, 0, 0, time.UTC)
	key := storageKey(at, "cam1", ".jpg")

	assert.True(t, strings.HasPrefix(key, "ingest/2026/08/21/cam1/"))
	assert.Regexp(t, regexp.MustCompile(`^ingest/2026/08/21/cam1/[0-9a-f-]{36}\.jpg$`), key)
}

func TestStorageKeyUsesUTCDate(t *testing.T) {
	// 23:30 in UTC+2 is 21:30 UTC the same day; 01:30 in UTC+2 is the
	// previous UTC day.
	zone := time.FixedZone("UTC+2", 2*60*60)
	key := storageKey(time.Date(2026, 8, 22, 1, 30, 0, 0, zone), "cam1", ".png")
	assert.True(t, strings.HasPrefix(key, "ingest/2026/08/21/"))
}

func TestStorageKeyDistinctPerCall(t *testing.T) {
	at := time.Now()
	assert.NotEqual(t, storageKey(at, "cam1", ".jpg"), storageKey(at, "cam1", ".jpg"))
}

func TestSanitizeKeyComponent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cam1", "cam1"},
		{"CAM-1_b", "CAM-1_b"},
		{"a/b", "a-b"},
		{"../etc/passwd", "---etc-passwd"},
		{"cam 1", "cam-1"},
		{"cam.1", "cam-1"},
		{"", "unknown"},
		{"///", "unknown"},
		{"...", "unknown"},
		{"日本", "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeKeyComponent(tc.in), "input %q", tc.in)
	}
}
