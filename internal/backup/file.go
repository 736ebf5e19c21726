package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/models"
)

// DefaultJournalName is the journal file created in the home directory when
// no path is configured.
const DefaultJournalName = ".photokit-backups.json"

// FileStore keeps snapshots in a single JSON journal file
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	now     func() time.Time
}

type journalFile struct {
	Snapshots map[string]Entry `json:"snapshots"`
}

// NewFileStore opens the journal at path, creating nothing until the first
// Save. An empty path selects ~/.photokit-backups.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, DefaultJournalName)
		} else {
			path = DefaultJournalName
		}
	}

	s := &FileStore{
		path:    path,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the journal location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No backup journal at %s, starting fresh", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup journal: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var jf journalFile
	if err := json.Unmarshal(data, &jf); err != nil {
		return fmt.Errorf("failed to parse backup journal %s: %w", s.path, err)
	}
	if jf.Snapshots != nil {
		s.entries = jf.Snapshots
	}
	logger.Debug("Loaded backup journal with %d entries from %s", len(s.entries), s.path)
	return nil
}

// Save records snapshot for path and writes the journal to disk.
func (s *FileStore) Save(ctx context.Context, path string, snapshot models.PhotoMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(path)
	prev, existed := s.entries[key]
	s.entries[key] = Entry{Path: key, Snapshot: snapshot, SavedAt: s.now().UTC()}
	if err := s.flush(); err != nil {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

// Load returns the snapshot stored for path.
func (s *FileStore) Load(ctx context.Context, path string) (models.PhotoMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.PhotoMetadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[keyFor(path)]
	if !ok {
		return models.PhotoMetadata{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return e.Snapshot, nil
}

// Delete drops the snapshot of path. Deleting a missing entry is not an error.
func (s *FileStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(path)
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.flush()
}

// List returns every entry ordered by path
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

// flush writes the journal. Callers hold mu.
func (s *FileStore) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	data, err := json.MarshalIndent(journalFile{Snapshots: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup journal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup journal: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write backup journal: %w", err)
	}

	logger.Debug("Saved backup journal with %d entries to %s", len(s.entries), s.path)
	return nil
}
