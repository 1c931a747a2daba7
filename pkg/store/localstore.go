package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/logger"
)

// LocalStore keeps the document in a single JSON file. Every write
// replaces the whole file via temp file + rename so readers never observe
// a partial document.
type LocalStore struct {
	path string
	lock sync.Mutex
}

func NewLocalStore(path string) (*LocalStore, error) {
	if path == "" {
		return nil, errors.New("store path must be set")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create store directory")
		}
	}
	return &LocalStore{path: path}, nil
}

func (s *LocalStore) Read(_ context.Context) (*Document, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.readLocked(), nil
}

func (s *LocalStore) Write(ctx context.Context, doc *Document) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writeLocked(ctx, doc)
}

func (s *LocalStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc := s.readLocked()
	if err := fn(doc); err != nil {
		return err
	}
	return s.writeLocked(ctx, doc)
}

func (s *LocalStore) Close() error {
	return nil
}

func (s *LocalStore) readLocked() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnw("could not read store file, using empty document", err, "path", s.path)
		}
		return EmptyDocument()
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		logger.Warnw("store file is corrupt, using empty document", err, "path", s.path)
		return EmptyDocument()
	}
	doc.normalize()
	return doc
}

func (s *LocalStore) writeLocked(_ context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode document")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".harmony-*.json")
	if err != nil {
		return errors.Wrap(err, "could not create temp file")
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "could not write document")
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "could not write document")
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "could not set store file mode")
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "could not replace store file")
	}
	return nil
}
