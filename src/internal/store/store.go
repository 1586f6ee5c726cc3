// Package store persists the segment -> uplink target assignments.
//
// Every segment owns one flat file under the state directory holding the
// canonical target token followed by a newline. Files are replaced
// atomically, and a per-segment advisory lock serializes writers.
package store

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

const recordPerm = 0644

// Store is the file-backed assignment store.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(segment models.Segment) string {
	return filepath.Join(s.dir, string(segment))
}

// Get returns the stored target of a segment. A missing record is
// ResourceNotFound and a corrupt one is a ConfigurationError.
func (s *Store) Get(segment models.Segment) (models.Target, error) {
	if !segment.Valid() {
		return models.Target{}, errors.NewConfigError(fmt.Sprintf("unknown segment %q", segment), nil)
	}

	data, err := os.ReadFile(s.recordPath(segment))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return models.Target{}, errors.NewNotFoundError(
				fmt.Sprintf("no assignment recorded for segment %s", segment), nil)
		}
		return models.Target{}, errors.NewInternalError(
			fmt.Sprintf("failed to read assignment of segment %s", segment), err)
	}

	token := string(bytes.TrimSuffix(data, []byte("\n")))
	target, err := models.ParseTarget(token)
	if err != nil {
		return models.Target{}, errors.NewConfigError(
			fmt.Sprintf("corrupt assignment record %s", s.recordPath(segment)), err)
	}
	return target, nil
}

// Set replaces the stored target of a segment. Callers must only call it
// after the routing change for the target has succeeded.
func (s *Store) Set(segment models.Segment, target models.Target) error {
	if !segment.Valid() {
		return errors.NewConfigError(fmt.Sprintf("unknown segment %q", segment), nil)
	}
	token, err := target.MarshalText()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create state directory %s", s.dir), err)
	}
	if err := utils.WriteFileAtomic(s.recordPath(segment), append(token, '\n'), recordPerm); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to persist assignment of segment %s", segment), err)
	}

	log.Debugf("[%s] Persisted assignment: %s", segment, target)
	return nil
}

// Seed writes the default target of every segment that has no record yet.
// Existing records are never overwritten. It returns the segments whose
// record was created.
func (s *Store) Seed(defaults map[models.Segment]models.Target) ([]models.Segment, error) {
	var created []models.Segment

	for _, segment := range models.Segments() {
		target, ok := defaults[segment]
		if !ok {
			continue
		}

		if _, err := os.Stat(s.recordPath(segment)); err == nil {
			log.Debugf("[%s] Assignment record exists, keeping it", segment)
			continue
		} else if !stderrors.Is(err, os.ErrNotExist) {
			return created, errors.NewInternalError(
				fmt.Sprintf("failed to stat assignment of segment %s", segment), err)
		}

		if err := s.Set(segment, target); err != nil {
			return created, err
		}
		log.Infof("[%s] Seeded default assignment: %s", segment, target)
		created = append(created, segment)
	}

	return created, nil
}

// Snapshot returns every readable assignment. Segments without a valid
// record are left out.
func (s *Store) Snapshot() map[models.Segment]models.Target {
	out := make(map[models.Segment]models.Target)
	for _, segment := range models.Segments() {
		if target, err := s.Get(segment); err == nil {
			out[segment] = target
		}
	}
	return out
}
