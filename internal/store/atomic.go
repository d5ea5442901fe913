package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// writeFile replaces path with data through a temp file in the same
// directory and a rename. Readers see either the old or the new content.
// A failed fsync is logged and tolerated; any other failure leaves path
// untouched and removes the temp file.
func (s *Store) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &StorageError{Op: "create temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := s.syncFile(tmp); err != nil {
		s.logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Warn("fsync failed, continuing with rename")
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	renamed = true

	if err := syncDir(dir); err != nil {
		s.logger.WithFields(logrus.Fields{
			"dir":   dir,
			"error": err,
		}).Debug("directory sync failed")
	}
	return nil
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
