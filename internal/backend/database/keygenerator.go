package database

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// ThumbnailID derives the thumbnail key of a media file. Modification time and
// size are part of the key so a replaced file never reuses a stale thumbnail.
func ThumbnailID(camera, path string, modTime time.Time, size int64) string {
	h := sha256.New()
	h.Write([]byte(camera))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
