package database

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Outcome is the result of processing one candidate.
type Outcome string

const (
	OutcomeLabeled       Outcome = "labeled"
	OutcomeAlreadyMarked Outcome = "already_marked"
	OutcomeUnresolved    Outcome = "unresolved"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeVanished      Outcome = "vanished"
	OutcomeNoMetadata    Outcome = "no_metadata"
	OutcomeNoLabels      Outcome = "no_labels"
	OutcomeError         Outcome = "error"
)

// Terminal reports whether a candidate with this outcome should not be
// processed again. Missing files, unresolved UIDs and errors stay retryable.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeLabeled, OutcomeAlreadyMarked, OutcomeNoMetadata, OutcomeNoLabels:
		return true
	}
	return false
}

// Entry is one ledger row.
type Entry struct {
	Key         string    `json:"key"`
	UID         string    `json:"uid,omitempty"`
	Path        string    `json:"path,omitempty"`
	Fingerprint string    `json:"-"`
	Outcome     Outcome   `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	Labels      int       `json:"labels"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EntryKey returns the ledger key for a candidate: its UID when known,
// otherwise its local path.
func EntryKey(uid, path string) string {
	if uid != "" {
		return uid
	}
	return "path:" + path
}

// Fingerprint identifies a file version by path, size and modification time.
func Fingerprint(path string, size int64, modTime time.Time) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(path))
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(size))
	binary.LittleEndian.PutUint64(buf[8:], uint64(modTime.UnixNano()))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}
