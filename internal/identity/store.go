package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zrc-project/zrc/internal/cryptoutil"
)

// KeyStore persists a process's long-term identity keypair. It is the
// concrete, filesystem-backed implementation of the "Key store" external
// collaborator (spec.md §6): an opaque name->bytes store that zeroizes on
// request. Other implementations (e.g. an OS keychain) can satisfy the same
// shape without the core depending on this package directly.
type KeyStore interface {
	Load() (*Keypair, error)
	Store(*Keypair) error
	LoadOrCreate() (*Keypair, error)
	Exists() bool
}

// fileKeyStore stores the identity keypair as a single 0600-mode file under
// dataDir, laid out as SignPriv(64) || KexPriv(32). Public keys are
// recomputed on load rather than persisted redundantly.
type fileKeyStore struct {
	path string
}

// NewFileKeyStore returns a KeyStore backed by a single file under dataDir.
func NewFileKeyStore(dataDir string) KeyStore {
	return &fileKeyStore{path: filepath.Join(dataDir, "identity.key")}
}

const keyFileSize = cryptoutil.SignPrivateKeySize + cryptoutil.KeySize

func (s *fileKeyStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *fileKeyStore) Load() (*Keypair, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("identity: load keystore: %w", err)
	}
	defer cryptoutil.ZeroBytes(raw)

	if len(raw) != keyFileSize {
		return nil, fmt.Errorf("identity: load keystore: corrupt key file (want %d bytes, got %d)", keyFileSize, len(raw))
	}

	kp := &Keypair{}
	copy(kp.SignPriv[:], raw[:cryptoutil.SignPrivateKeySize])
	copy(kp.KexPriv[:], raw[cryptoutil.SignPrivateKeySize:])
	copy(kp.SignPub[:], kp.SignPriv[32:])
	cryptoutil.ScalarBaseMultInto(&kp.KexPub, &kp.KexPriv)
	return kp, nil
}

func (s *fileKeyStore) Store(kp *Keypair) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("identity: store keystore: mkdir: %w", err)
	}

	raw := make([]byte, 0, keyFileSize)
	raw = append(raw, kp.SignPriv[:]...)
	raw = append(raw, kp.KexPriv[:]...)
	defer cryptoutil.ZeroBytes(raw)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("identity: store keystore: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("identity: store keystore: rename: %w", err)
	}
	return nil
}

func (s *fileKeyStore) LoadOrCreate() (*Keypair, error) {
	if s.Exists() {
		return s.Load()
	}
	kp, err := GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("identity: load-or-create: %w", err)
	}
	if err := s.Store(kp); err != nil {
		return nil, fmt.Errorf("identity: load-or-create: %w", err)
	}
	return kp, nil
}
