// Package store persists dialogue documents as JSON blobs with revision and
// sequence sidecars in a single data directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dialoguegen/api/internal/dialogue"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Logger *logrus.Logger
	Now    func() time.Time
}

type Store struct {
	root     string
	logger   *logrus.Logger
	now      func() time.Time
	syncFile func(*os.File) error

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

type Snapshot struct {
	ID            string
	Document      json.RawMessage
	SchemaVersion string
	Revision      int64
	UpdatedAt     time.Time
}

// Commit describes the outcome of Put. Written is false only when a
// sequence guard skipped a stale write.
type Commit struct {
	Written   bool
	Revision  int64
	UpdatedAt time.Time
	AckSeq    int64
	LastSeq   int64
	HasSeq    bool
}

type Entry struct {
	ID        string    `json:"id"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open prepares root as the data directory, creating it if needed.
func Open(root string, opts Options) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		root:     root,
		logger:   logger,
		now:      now,
		syncFile: (*os.File).Sync,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

// Get returns the current blob and its revision. A blob without a revision
// sidecar reports revision 1.
func (s *Store) Get(id string) (Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}
	lock := s.documentLock(id)
	lock.Lock()
	defer lock.Unlock()

	snapshot, exists, err := s.read(id)
	if err != nil {
		return Snapshot{}, err
	}
	if !exists {
		return Snapshot{}, ErrNotFound
	}
	return snapshot, nil
}

func (s *Store) read(id string) (Snapshot, bool, error) {
	path := s.blobPath(id)
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, &StorageError{Op: "read", Path: path, Err: err}
	}
	meta, ok, err := s.readRevision(id)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !ok {
		meta = RevisionMetadata{Revision: 1, UpdatedAt: modTime(path)}
	}
	return Snapshot{
		ID:            id,
		Document:      blob,
		SchemaVersion: dialogue.SchemaVersionOf(blob),
		Revision:      meta.Revision,
		UpdatedAt:     meta.UpdatedAt,
	}, true, nil
}

// Put is the single durable write. Inside the document's critical section
// it loads the current state, lets guard decide, runs approve (if any), and
// then writes the blob followed by whichever sidecar the guard selected.
// Errors from guard or approve are returned unchanged and nothing is
// written.
func (s *Store) Put(id string, blob []byte, guard Guard, approve func() error) (Commit, error) {
	if err := ValidateID(id); err != nil {
		return Commit{}, err
	}
	if guard == nil {
		guard = Unconditional()
	}
	lock := s.documentLock(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.load(id)
	if err != nil {
		return Commit{}, err
	}
	p, err := guard.plan(st)
	if err != nil {
		return Commit{}, err
	}
	if p.skip {
		return Commit{Written: false, AckSeq: p.ackSeq, LastSeq: st.lastSeq, HasSeq: true}, nil
	}
	if approve != nil {
		if err := approve(); err != nil {
			return Commit{}, err
		}
	}

	if err := s.writeFile(s.blobPath(id), blob); err != nil {
		return Commit{}, err
	}
	commit := Commit{Written: true, UpdatedAt: s.now().UTC(), AckSeq: p.ackSeq, LastSeq: st.lastSeq, HasSeq: st.recorded}
	if p.revision > 0 {
		meta := RevisionMetadata{Revision: p.revision, UpdatedAt: commit.UpdatedAt}
		if err := s.writeRevision(id, meta); err != nil {
			return Commit{}, err
		}
		commit.Revision = p.revision
	}
	if p.writeSeq {
		if err := s.writeSequence(id, p.seq); err != nil {
			return Commit{}, err
		}
		commit.LastSeq = p.seq
		commit.HasSeq = true
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": id,
		"revision":    commit.Revision,
		"last_seq":    commit.LastSeq,
		"bytes":       len(blob),
	}).Debug("document written")
	return commit, nil
}

func (s *Store) load(id string) (state, error) {
	current, exists, err := s.read(id)
	if err != nil {
		return state{}, err
	}
	last, recorded, err := s.readSequence(id)
	if err != nil {
		return state{}, err
	}
	return state{exists: exists, current: current, lastSeq: last, recorded: recorded}, nil
}

// List returns every stored document ordered by id.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &StorageError{Op: "list", Path: s.root, Err: err}
	}
	items := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, blobSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, blobSuffix)
		if ValidateID(id) != nil {
			continue
		}
		meta, ok, err := s.readRevision(id)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"document_id": id, "error": err}).Warn("skipping unreadable revision")
			continue
		}
		if !ok {
			meta = RevisionMetadata{Revision: 1, UpdatedAt: modTime(s.blobPath(id))}
		}
		items = append(items, Entry{ID: id, Revision: meta.Revision, UpdatedAt: meta.UpdatedAt})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Writable checks that the data directory accepts new files.
func (s *Store) Writable() error {
	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return &StorageError{Op: "probe", Path: s.root, Err: err}
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func (s *Store) documentLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}
