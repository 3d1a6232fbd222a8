package lines

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// FingerprintSize is the fingerprint length in bytes.
const FingerprintSize = 16

// Fingerprint identifies a normalized line.
type Fingerprint [FingerprintSize]byte

// String returns the hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Normalize returns the comparison form of a line: surrounding whitespace,
// including the line terminator, is removed.
func Normalize(line string) string {
	return strings.TrimSpace(line)
}

// FingerprintOf hashes an already normalized line.
func FingerprintOf(normalized string) Fingerprint {
	h, err := blake2b.New(FingerprintSize, nil)
	if err != nil {
		// Only reachable with an invalid size or key.
		panic(err)
	}
	_, _ = h.Write([]byte(normalized))
	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}
