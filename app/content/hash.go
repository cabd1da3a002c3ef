package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// TextHash is the article fingerprint: hex SHA-256 of already normalized text
func TextHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ChunkHash identifies a chunk by its article, position and text
func ChunkHash(url string, index int, text string) string {
	sum := sha256.Sum256([]byte(url + "::" + strconv.Itoa(index) + "::" + text))
	return hex.EncodeToString(sum[:])
}
