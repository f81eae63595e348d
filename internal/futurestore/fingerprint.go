package futurestore

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// Fingerprint computes the caching-mode cache key:
// sha256(method || canonical-url || canonical-headers || body).
// Canonical headers are the sorted "name: value" lines, one per value, so
// that two logically identical requests with headers supplied in a
// different order still collide.
func Fingerprint(method, url string, headers http.Header, body []byte) string {
	var lines []string
	for name, values := range headers {
		for _, v := range values {
			lines = append(lines, strings.ToLower(name)+": "+v)
		}
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
