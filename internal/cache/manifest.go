package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/luminis/luminis/internal/domain"
)

const manifestFileName = "manifest.json"

// ManifestStore persists the primary source's paging cursor under the
// cache root, atomically, per spec §4.2.
type ManifestStore struct {
	cache *Cache
}

// NewManifestStore binds a ManifestStore to an existing Cache root.
func NewManifestStore(c *Cache) *ManifestStore {
	return &ManifestStore{cache: c}
}

func (m *ManifestStore) path() string {
	return filepath.Join(m.cache.dir, manifestFileName)
}

// Load returns the persisted manifest, or the zero-value {0, ∅} manifest
// if none has been stored yet.
func (m *ManifestStore) Load() (domain.Manifest, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Manifest{LastOffset: 0, LastSeenPIDs: nil}, nil
		}
		return domain.Manifest{}, fmt.Errorf("manifest: read: %w", err)
	}

	var man domain.Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return domain.Manifest{}, fmt.Errorf("manifest: decode: %w", err)
	}
	return man, nil
}

// Store atomically replaces the persisted manifest.
func (m *ManifestStore) Store(man domain.Manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	return m.cache.writeAtomic(m.path(), data)
}
