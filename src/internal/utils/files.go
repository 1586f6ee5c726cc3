package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/routervm/uplinkctl/src/internal/log"
)

func CloseOrWarn(file io.Closer) {
	if err := file.Close(); err != nil {
		log.Warnf("Failed to close file: %v", err)
	}
}

// WriteFileAtomic replaces path with data. The content is written to a temp
// file in the same directory, synced and renamed over path, so readers see
// either the old or the new content, never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		CloseOrWarn(tmp)
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		CloseOrWarn(d)
	}
	return nil
}
