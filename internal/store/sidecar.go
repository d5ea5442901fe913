package store

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	blobSuffix     = ".json"
	revisionSuffix = ".json.rev"
	sequenceSuffix = ".json.seq"
)

// RevisionMetadata is the content of the <id>.json.rev sidecar.
type RevisionMetadata struct {
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) blobPath(id string) string     { return s.path(id + blobSuffix) }
func (s *Store) revisionPath(id string) string { return s.path(id + revisionSuffix) }
func (s *Store) sequencePath(id string) string { return s.path(id + sequenceSuffix) }

// readRevision returns ok=false when the sidecar does not exist.
func (s *Store) readRevision(id string) (RevisionMetadata, bool, error) {
	path := s.revisionPath(id)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return RevisionMetadata{}, false, nil
	}
	if err != nil {
		return RevisionMetadata{}, false, &StorageError{Op: "read revision", Path: path, Err: err}
	}
	var meta RevisionMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return RevisionMetadata{}, false, &StorageError{Op: "decode revision", Path: path, Err: err}
	}
	return meta, true, nil
}

func (s *Store) writeRevision(id string, meta RevisionMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return &StorageError{Op: "encode revision", Path: s.revisionPath(id), Err: err}
	}
	return s.writeFile(s.revisionPath(id), append(raw, '\n'))
}

// readSequence returns ok=false when no sequence has been recorded.
func (s *Store) readSequence(id string) (int64, bool, error) {
	path := s.sequencePath(id)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &StorageError{Op: "read sequence", Path: path, Err: err}
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, false, &StorageError{Op: "decode sequence", Path: path, Err: err}
	}
	return seq, true, nil
}

func (s *Store) writeSequence(id string, seq int64) error {
	return s.writeFile(s.sequencePath(id), []byte(strconv.FormatInt(seq, 10)+"\n"))
}
