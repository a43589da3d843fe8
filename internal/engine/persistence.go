package engine

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/celerix-dev/viaticos/internal/vault"
)

const snapshotExt = ".json"

// Persistence keeps one JSON snapshot file per key in DataDir.
// When a master key is set, file contents are sealed with AES-GCM.
type Persistence struct {
	DataDir   string
	masterKey []byte
	mu        sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// Seal makes every later write encrypted with key and every read decrypted.
func (p *Persistence) Seal(key []byte) error {
	if len(key) != vault.KeySize {
		return fmt.Errorf("master key must be %d bytes, got %d", vault.KeySize, len(key))
	}
	p.mu.Lock()
	p.masterKey = key
	p.mu.Unlock()
	return nil
}

func (p *Persistence) path(key string) string {
	return filepath.Join(p.DataDir, key+snapshotExt)
}

// Save writes a single key's snapshot atomically.
func (p *Persistence) Save(key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	content := data
	if p.masterKey != nil {
		sealed, err := vault.Seal(data, p.masterKey)
		if err != nil {
			return err
		}
		content = []byte(sealed)
	}

	filePath := p.path(key)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return err
	}

	// Readers see either the old file or the new one, never a torn write.
	return os.Rename(tempPath, filePath)
}

// Remove deletes a key's snapshot. Missing files are not an error.
func (p *Persistence) Remove(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// LoadAll returns every snapshot found in the data directory. A file that
// cannot be read, or whose sealing does not match the configured key, fails
// the whole load so the caller never starts on a partial view and overwrites
// the rest.
func (p *Persistence) LoadAll() (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string][]byte)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != snapshotExt {
			continue
		}
		key := strings.TrimSuffix(file.Name(), snapshotExt)

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", key, err)
		}

		switch {
		case p.masterKey != nil:
			content, err = vault.Open(string(content), p.masterKey)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnseal, key, err)
			}
		case looksSealed(content):
			return nil, fmt.Errorf("%w: %s", ErrSealed, key)
		}
		allData[key] = content
	}
	return allData, nil
}

// looksSealed reports whether content is a vault hex payload rather than JSON.
func looksSealed(content []byte) bool {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" || json.Valid([]byte(trimmed)) {
		return false
	}
	_, err := hex.DecodeString(trimmed)
	return err == nil
}
