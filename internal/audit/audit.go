// Package audit provides the signed, append-only audit log collaborator
// spec.md §6 leaves abstract ("the log is a collaborator, not core"): one
// newline-delimited-JSON entry per security-relevant outcome, each signed
// by the device key over its canonical bytes.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
)

// Outcome names the category of event an entry records.
type Outcome string

const (
	OutcomePairApproved    Outcome = "pair_approved"
	OutcomePairDenied      Outcome = "pair_denied"
	OutcomeSessionGranted  Outcome = "session_granted"
	OutcomeSessionDenied   Outcome = "session_denied"
	OutcomeTicketIssued    Outcome = "ticket_issued"
	OutcomeReplayRejected  Outcome = "replay_rejected"
	OutcomeEnvelopeFailed  Outcome = "envelope_open_failed"
	OutcomePairingRevoked  Outcome = "pairing_revoked"
)

// Entry is one audit record. Fields are ordered so that its JSON encoding
// is stable: Go's encoding/json emits struct fields in declaration order,
// which is what SigningBytes relies on for a deterministic signature
// input.
type Entry struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
	DeviceID   string    `json:"device_id"`
	OperatorID string    `json:"operator_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Signature  string    `json:"signature,omitempty"`
}

// SigningBytes returns the canonical bytes a signature covers: the JSON
// encoding of the entry with Signature cleared.
func (e Entry) SigningBytes() ([]byte, error) {
	e.Signature = ""
	return json.Marshal(e)
}

// Log is an append-only, signed, newline-delimited-JSON audit sink backed
// by a single file opened in append mode.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	device *identity.Keypair
	seq    uint64
}

// Open opens (creating if necessary) the audit log file at path for
// appending, signing every entry with device's signing key.
func Open(path string, device *identity.Keypair) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	return &Log{w: f, closer: f, device: device}, nil
}

// NewWithWriter builds a Log over an arbitrary writer, for tests and for
// composing with other sinks.
func NewWithWriter(w io.Writer, device *identity.Keypair) *Log {
	return &Log{w: w, device: device}
}

// Record appends a signed entry for the given outcome. The sequence
// number and timestamp are assigned by the log itself so callers cannot
// accidentally produce colliding or out-of-order audit records.
func (l *Log) Record(outcome Outcome, deviceID, operatorID identity.ID32, detail string, now time.Time) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	entry := Entry{
		Sequence:   l.seq,
		Timestamp:  now.UTC(),
		Outcome:    outcome,
		DeviceID:   deviceID.String(),
		OperatorID: operatorID.String(),
		Detail:     detail,
	}

	signingBytes, err := entry.SigningBytes()
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal signing bytes: %w", err)
	}
	digest := cryptoutil.SHA256Sum(signingBytes)
	sig := l.device.Sign(digest[:])
	entry.Signature = fmt.Sprintf("%x", sig[:])

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.w.Write(line); err != nil {
		return Entry{}, fmt.Errorf("audit: write entry: %w", err)
	}
	return entry, nil
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Verify checks that an entry's signature matches its signing bytes under
// signPub, used by audit-log review tooling to detect tampering.
func Verify(entry Entry, signPub [cryptoutil.SignPublicKeySize]byte) error {
	var sigBytes [cryptoutil.SignatureSize]byte
	if _, err := fmt.Sscanf(entry.Signature, "%x", &sigBytes); err != nil {
		return fmt.Errorf("audit: parse signature: %w", err)
	}
	signingBytes, err := entry.SigningBytes()
	if err != nil {
		return fmt.Errorf("audit: marshal signing bytes: %w", err)
	}
	digest := cryptoutil.SHA256Sum(signingBytes)
	if !cryptoutil.VerifySignature(signPub, digest[:], sigBytes) {
		return fmt.Errorf("audit: signature does not verify")
	}
	return nil
}

// ReadEntries parses every newline-delimited entry from r, in order.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("audit: decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
