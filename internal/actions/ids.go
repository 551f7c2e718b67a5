package actions

import (
	"crypto/rand"
	"crypto/sha256"
	"strings"
	"time"
)

const idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const idTimeLayout = "20060102-150405"

// NewID returns PREFIX-YYYYMMDD-HHMMSS-XXXXXX with a random suffix.
func NewID(prefix string, at time.Time) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return format(prefix, at, buf[:])
}

// DeterministicID derives the suffix from seed parts, so the same inputs
// always yield the same id.
func DeterministicID(prefix string, at time.Time, seed ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(seed, "|")))
	return format(prefix, at, sum[:6])
}

func format(prefix string, at time.Time, entropy []byte) string {
	var suffix [6]byte
	for i := range suffix {
		suffix[i] = idAlphabet[int(entropy[i])%len(idAlphabet)]
	}
	return prefix + "-" + at.UTC().Format(idTimeLayout) + "-" + string(suffix[:])
}
