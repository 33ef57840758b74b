package idempotency

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"
)

const Header = "Idempotency-Key"

// MaxKeyLength bounds what is stored alongside an order, in bytes.
const MaxKeyLength = 128

var (
	ErrKeyTooLong = errors.New("idempotency key longer than 128 bytes")
	ErrKeyInvalid = errors.New("idempotency key is not valid UTF-8")
)

// Key returns the trimmed header value, or "" when the header is absent.
// Keys are never shortened: two keys that differ only past the limit must
// not name the same request.
func Key(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(Header))
	if !utf8.ValidString(key) {
		return "", ErrKeyInvalid
	}
	if len(key) > MaxKeyLength {
		return "", ErrKeyTooLong
	}
	return key, nil
}
