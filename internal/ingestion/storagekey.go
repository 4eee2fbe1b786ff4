package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "ingest"

// storageKey derives the object path from the ingestion date, the camera id
// and the content-type extension. The UUID component makes concurrent
// requests collision-free; the date and camera keep the key human-traceable.
// The key depends only on the clock, the sanitized camera id and fresh
// randomness, and is computed before any external call.
func storageKey(now time.Time, cameraID, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s%s",
		keyPrefix,
		now.UTC().Format("2006/01/02"),
		sanitizeKeyComponent(cameraID),
		uuid.NewString(),
		ext,
	)
}

// sanitizeKeyComponent strips path-breaking characters from user-supplied
// fields before they enter a storage key. Anything outside [A-Za-z0-9_-]
// becomes a dash; dots are rewritten too so ".." can never survive into a
// key component. An empty result falls back to "unknown".
func sanitizeKeyComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := b.String()
	if strings.Trim(out, "-_") == "" {
		return "unknown"
	}
	return out
}
