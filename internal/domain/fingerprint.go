package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Fingerprint derives the thumbnail cache key for a source image rendered at
// the given width. The source modification time is part of the key, so a
// rewritten source never hits a render of its previous content.
func Fingerprint(sourcePath string, width int, modTime time.Time) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(width)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}
