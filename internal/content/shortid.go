package content

import "strings"

// Alphabet is the symbol set short identifiers are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ShortID is the public key of a content item.
type ShortID string

// ParseShortID lower-cases ASCII letters in raw and checks it has exactly
// length symbols from Alphabet. Any non-ASCII byte is rejected, so case
// folding never changes the length.
func ParseShortID(raw string, length int) (ShortID, bool) {
	if len(raw) != length {
		return "", false
	}

	id := make([]byte, length)

	for i := 0; i < length; i++ {
		c := raw[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}

		if strings.IndexByte(Alphabet, c) < 0 {
			return "", false
		}

		id[i] = c
	}

	return ShortID(id), true
}

// Keyspace returns the number of distinct identifiers of the given length.
func Keyspace(length int) int64 {
	n := int64(1)
	for range length {
		n *= int64(len(Alphabet))
	}

	return n
}
