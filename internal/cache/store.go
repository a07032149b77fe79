package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/pagewalk/internal/model"
)

// Store reads and writes one result file.
type Store struct {
	path string
}

// NewStore creates a Store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// LoadResult describes what Load found.
type LoadResult struct {
	// Results is the loaded set; empty when nothing usable was found.
	Results *model.ResultSet

	// Missing is true when the file does not exist.
	Missing bool

	// Warning is set when the file existed but could not be used, or when
	// duplicate entries were dropped. It wraps ErrCorrupt when decoding failed.
	Warning error
}

// Load reads the stored result set. A missing, unreadable or corrupt file
// is not an error: it yields an empty set and, for the latter two, a Warning.
func (s *Store) Load() LoadResult {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{Results: model.NewResultSet(), Missing: true}
		}
		return LoadResult{Results: model.NewResultSet(), Warning: fmt.Errorf("failed to read cache %s: %w", s.path, err)}
	}

	var records []model.PageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return LoadResult{Results: model.NewResultSet(), Warning: fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)}
	}

	rs, dropped := model.NewResultSetFrom(records)
	res := LoadResult{Results: rs}
	if dropped > 0 {
		res.Warning = fmt.Errorf("dropped %d invalid or duplicate entries from %s", dropped, s.path)
	}
	return res
}

// Save writes rs sorted by URL as an indented JSON array. The file is
// written to a temporary sibling first and renamed into place, so readers
// never observe a partial file.
func (s *Store) Save(rs *model.ResultSet) error {
	records := rs.Sorted()
	if records == nil {
		records = []model.PageRecord{}
	}
	return writeJSON(s.path, records)
}

// PendingPath returns the sidecar file holding URLs that were scheduled but
// not recorded when the last run stopped.
func (s *Store) PendingPath() string {
	return strings.TrimSuffix(s.path, ".json") + ".pending.json"
}

// SavePending writes urls to the sidecar. An empty list removes it.
func (s *Store) SavePending(urls []string) error {
	if len(urls) == 0 {
		return s.ClearPending()
	}
	return writeJSON(s.PendingPath(), urls)
}

// LoadPending reads the sidecar. A missing file yields no URLs and no error.
func (s *Store) LoadPending() ([]string, error) {
	data, err := os.ReadFile(s.PendingPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending URLs %s: %w", s.PendingPath(), err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.PendingPath(), err)
	}
	return urls, nil
}

// ClearPending removes the sidecar if it exists.
func (s *Store) ClearPending() error {
	if err := os.Remove(s.PendingPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// writeJSON writes v as indented JSON through a temporary file and a rename.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", ErrPersist, dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil { //nolint:gosec // result files are meant to be shared
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// ReadSeedList reads a JSON array of path strings. Anything other than an
// array, null included, is rejected.
func ReadSeedList(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided seed list path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedList, err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s: not a JSON array", ErrSeedList, path)
	}
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSeedList, path, err)
	}
	return paths, nil
}
