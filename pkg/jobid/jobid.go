// Package jobid generates short identifiers for exports and render jobs.
//
// Format: <kind:2>-<base62_ts:4><base62_rand:4>, 11 characters in total.
//
//   - ex = export document
//   - rj = render job
//   - pv = preview session
//
// The timestamp wraps every 62^4 units; the random part keeps IDs created in
// the same unit apart.
package jobid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

// Kinds.
const (
	KindExport    = "ex"
	KindRenderJob = "rj"
	KindPreview   = "pv"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// base62Max is 62^4.
const base62Max = 62 * 62 * 62 * 62

const idLen = 11

var validKinds = map[string]bool{
	KindExport:    true,
	KindRenderJob: true,
	KindPreview:   true,
}

var (
	ErrInvalidFormat = errors.New("invalid job ID format")
	ErrInvalidKind   = errors.New("invalid job ID kind")
)

// ID is a parsed identifier.
type ID struct {
	Kind      string
	Timestamp string
	Random    string
	Raw       string
}

func (id ID) String() string {
	return id.Raw
}

// New generates an ID of the given kind. It panics on an unknown kind.
func New(kind string) string {
	return newAt(kind, time.Now())
}

func newAt(kind string, now time.Time) string {
	if !validKinds[kind] {
		panic(fmt.Sprintf("jobid: invalid kind: %q", kind))
	}
	ts := encodeBase62(uint64(now.UnixMilli()) % base62Max)
	return kind + "-" + ts + randomBase62(4)
}

// Parse validates and splits id.
func Parse(id string) (ID, error) {
	if len(id) != idLen {
		return ID{}, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidFormat, idLen, len(id))
	}
	if id[2] != '-' {
		return ID{}, fmt.Errorf("%w: missing dash at position 2", ErrInvalidFormat)
	}
	kind := id[:2]
	if !validKinds[kind] {
		return ID{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKind, kind)
	}
	suffix := id[3:]
	if !isBase62(suffix) {
		return ID{}, fmt.Errorf("%w: suffix contains invalid characters", ErrInvalidFormat)
	}
	return ID{Kind: kind, Timestamp: suffix[:4], Random: suffix[4:], Raw: id}, nil
}

// IsValid reports whether id parses.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

func encodeBase62(n uint64) string {
	result := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		result[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(result)
}

// randomBase62 uses rejection sampling: bytes >= 248 are redrawn so every
// symbol is equally likely.
func randomBase62(length int) string {
	const maxUnbiased = 248
	result := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(result) < length {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("jobid: reading random bytes: %v", err))
		}
		for _, b := range buf {
			if b < maxUnbiased && len(result) < length {
				result = append(result, base62Alphabet[b%62])
			}
		}
	}
	return string(result)
}

func isBase62(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
