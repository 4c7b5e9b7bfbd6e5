package client

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
)

const sessionCookieName = "supatodo-session"

// FileStorage keeps the session in a file, authenticated and encrypted
// with securecookie the way a browser keeps it in local storage.
type FileStorage struct {
	path  string
	codec *securecookie.SecureCookie
}

var _ SessionStorage = (*FileStorage)(nil)

// NewFileStorage stores state at path. hashKey authenticates the file
// and blockKey (16, 24 or 32 bytes) encrypts it.
func NewFileStorage(path string, hashKey, blockKey []byte) *FileStorage {
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	//session lifetime is governed by the provider, not by the file
	codec.MaxAge(0)
	codec.MaxLength(0)
	return &FileStorage{path: path, codec: codec}
}

func (f *FileStorage) Load() (SavedState, error) {
	var state SavedState
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	if err := f.codec.Decode(sessionCookieName, strings.TrimSpace(string(data)), &state); err != nil {
		return SavedState{}, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return state, nil
}

func (f *FileStorage) Save(state SavedState) error {
	encoded, err := f.codec.Encode(sessionCookieName, state)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(encoded), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStorage) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// KeysFromSecret derives the hash and block keys from a passphrase.
func KeysFromSecret(secret string) (hashKey, blockKey []byte) {
	h := sha256.Sum256([]byte("hash:" + secret))
	b := sha256.Sum256([]byte("block:" + secret))
	return h[:], b[:]
}

// LoadOrCreateKeys reads the key pair from path, generating and writing
// a random pair when the file does not exist yet.
func LoadOrCreateKeys(path string) (hashKey, blockKey []byte, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != 64 {
			return nil, nil, fmt.Errorf("key file %s: want 64 bytes, have %d", path, len(data))
		}
		return data[:32], data[32:], nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	key := securecookie.GenerateRandomKey(64)
	if key == nil {
		return nil, nil, errors.New("generating session key failed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, nil, err
	}
	return key[:32], key[32:], nil
}

// MemoryStorage keeps state in memory. Used in tests and when nothing
// should touch the disk.
type MemoryStorage struct {
	mu    sync.Mutex
	state SavedState
	saves int
}

var _ SessionStorage = (*MemoryStorage)(nil)

func (m *MemoryStorage) Load() (SavedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStorage) Save(state SavedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.saves++
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = SavedState{}
	return nil
}
