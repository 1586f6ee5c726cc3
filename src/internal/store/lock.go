package store

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

// Lock takes an exclusive advisory lock on the segment. It blocks until
// the lock is available. Locks on different segments are independent.
func (s *Store) Lock(segment models.Segment) (unlock func(), err error) {
	if !segment.Valid() {
		return nil, errors.NewConfigError(fmt.Sprintf("unknown segment %q", segment), nil)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to create state directory %s", s.dir), err)
	}

	path := filepath.Join(s.dir, "."+string(segment)+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to open lock file %s", path), err)
	}

	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		utils.CloseOrWarn(f)
		return nil, errors.NewInternalError(fmt.Sprintf("failed to lock segment %s", segment), err)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		utils.CloseOrWarn(f)
	}, nil
}
