// Package naming holds the file naming conventions shared by the recorder
// client and the server-side pipeline. Every name that crosses the wire or
// lands in a collection is built and parsed here.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	ChunkExtension    = ".webm"
	DocumentExtension = ".txt"
	ArtifactExtension = ".md"

	// MaxSequence is the largest per-date sequence number a document name
	// can encode. The two-digit field does not wrap.
	MaxSequence = 99
)

var (
	chunkFileRe  = regexp.MustCompile(`^(\d{6}_\d{6})_chunk(\d{2})\.webm$`)
	sessionIDRe  = regexp.MustCompile(`^\d{6}_\d{6}$`)
	promotableRe = regexp.MustCompile(`^\d{6}_(\d{2}|\d{6})\.txt$`)
)

// SessionID formats a wall-clock time as an opaque session token,
// YYMMDD_HHMMSS.
func SessionID(t time.Time) string {
	return t.Format("060102_150405")
}

func ValidSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// DatePrefix extracts the YYMMDD part of a session id.
func DatePrefix(sessionID string) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", fmt.Errorf("malformed session id: %s", sessionID)
	}
	return sessionID[:6], nil
}

// ChunkFileName builds the wire name for a sealed chunk. Indices are
// zero-based and zero-padded to two digits.
func ChunkFileName(sessionID string, index int) string {
	return fmt.Sprintf("%s_chunk%02d%s", sessionID, index, ChunkExtension)
}

// ParseChunkFileName splits a chunk file name into its session id and
// chunk index. Names not matching the upload contract are rejected.
func ParseChunkFileName(name string) (string, int, error) {
	m := chunkFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, fmt.Errorf("malformed chunk file name: %s", name)
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, err
	}
	return m[1], index, nil
}

func ValidChunkFileName(name string) bool {
	return chunkFileRe.MatchString(name)
}

// DocumentName builds a sequence-coded session document name,
// {YYMMDD}_{NN}.txt.
func DocumentName(datePrefix string, seq int) string {
	return fmt.Sprintf("%s_%02d%s", datePrefix, seq, DocumentExtension)
}

// ParseSequence returns the sequence number of a document name sharing the
// given date prefix, or false when the name belongs to another date or is
// not sequence-coded.
func ParseSequence(datePrefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, datePrefix+"_")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, DocumentExtension)
	if !ok || len(digits) != 2 {
		return 0, false
	}
	seq, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Promotable reports whether a document name is eligible for promotion.
// Both sequence-coded ({YYMMDD}_{NN}.txt) and legacy manual names
// ({YYMMDD}_{HHMMSS}.txt) qualify.
func Promotable(name string) bool {
	return promotableRe.MatchString(name)
}

// ArtifactName derives the deterministic artifact name for a session
// document. Its existence in the output collection is the idempotency
// guard against reprocessing.
func ArtifactName(documentName string) string {
	base := strings.TrimSuffix(documentName, DocumentExtension)
	return base + "_post" + ArtifactExtension
}
