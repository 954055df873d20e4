// Package storage is the durable client-side key/value store backing the session.
//
// It holds exactly two entries: the bearer credential under KeyToken and a JSON
// identity subset under KeyUser. Concurrent processes sharing a profile are not
// coordinated: the last writer wins.
package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pashurakshak/rakshak/internal/crypto/clientcrypto"
	"github.com/pashurakshak/rakshak/internal/errs"
)

// Fixed keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store is the durable storage contract used by the session store.
type Store interface {
	// Get returns the value and whether the key was present.
	Get(key string) (string, bool, error)
	// Set writes a value.
	Set(key, value string) error
	// Delete removes a key; missing keys are not an error.
	Delete(key string) error
}

// Clear removes both fixed entries.
func Clear(s Store) error {
	return errors.Join(s.Delete(KeyToken), s.Delete(KeyUser))
}

// ConfigDir returns the per-user configuration directory for rakshak.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "rakshak")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rakshak")
}

// DefaultPath is where FileStore keeps its document unless told otherwise.
func DefaultPath() string { return filepath.Join(ConfigDir(), "storage.json") }

// ---- file store ----

type document struct {
	Version int               `json:"version"`
	Sealed  bool              `json:"sealed,omitempty"`
	Salt    string            `json:"salt,omitempty"`
	Entries map[string]string `json:"entries"`
}

// FileStore persists entries as one JSON document, optionally sealing each value.
type FileStore struct {
	path       string
	passphrase []byte

	mu      sync.Mutex
	keySalt string
	key     []byte
}

// NewFileStore opens (lazily) the document at path. A non-empty passphrase seals values at rest.
func NewFileStore(path, passphrase string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	st := &FileStore{path: path}
	if passphrase != "" {
		st.passphrase = []byte(passphrase)
	}
	return st
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Get returns the value for key.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := doc.Entries[key]
	if !ok {
		return "", false, nil
	}
	if !doc.Sealed {
		return raw, true, nil
	}
	if s.passphrase == nil {
		return "", false, fmt.Errorf("%w: passphrase required", errs.ErrSealed)
	}
	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", errs.ErrSealed, err)
	}
	k, err := s.keyFor(doc.Salt)
	if err != nil {
		return "", false, err
	}
	pt, err := clientcrypto.Open(k, []byte(key), blob)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", errs.ErrSealed, err)
	}
	return string(pt), true, nil
}

// Set writes value under key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := s.prepare(doc); err != nil {
		return err
	}
	if doc.Sealed {
		k, err := s.keyFor(doc.Salt)
		if err != nil {
			return err
		}
		blob, err := clientcrypto.Seal(k, []byte(key), []byte(value))
		if err != nil {
			return err
		}
		value = base64.StdEncoding.EncodeToString(blob)
	}
	doc.Entries[key] = value
	return s.save(doc)
}

// Delete removes key.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	return s.save(doc)
}

// prepare aligns an existing document with the store's sealing mode. Switching
// mode drops the old entries since they cannot be carried over.
func (s *FileStore) prepare(doc *document) error {
	wantSealed := s.passphrase != nil
	if doc.Sealed == wantSealed && (!wantSealed || doc.Salt != "") {
		return nil
	}
	doc.Entries = map[string]string{}
	doc.Sealed = wantSealed
	doc.Salt = ""
	if wantSealed {
		salt, err := clientcrypto.Rand(clientcrypto.SaltLen)
		if err != nil {
			return err
		}
		doc.Salt = base64.StdEncoding.EncodeToString(salt)
	}
	return nil
}

func (s *FileStore) keyFor(salt string) ([]byte, error) {
	if s.key != nil && s.keySalt == salt {
		return s.key, nil
	}
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: bad salt", errs.ErrSealed)
	}
	s.key = clientcrypto.DeriveKey(s.passphrase, raw)
	s.keySalt = salt
	return s.key, nil
}

func (s *FileStore) load() (*document, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{Version: 1, Entries: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("storage %s: %w", s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return &doc, nil
}

// save writes atomically: temp file in the same directory, then rename.
func (s *FileStore) save(doc *document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// ---- memory store ----

// MemoryStore keeps entries in process memory only.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]string{}} }

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
