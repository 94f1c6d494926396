package knol

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"unicode/utf8"
)

// Normalize cleans material before hashing so that cosmetic edits do not
// produce a new study set. Text has its line endings unified and trailing
// whitespace trimmed on every line; binary content is left untouched.
func Normalize(data []byte) []byte {
	if !utf8.Valid(data) {
		return data
	}
	text := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	lines := bytes.Split(text, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	return bytes.TrimSpace(bytes.Join(lines, []byte("\n")))
}

// Hash takes material, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(data []byte) string {
	hashBytes := sha256.Sum256(Normalize(data))
	return fmt.Sprintf("%x", hashBytes)
}
