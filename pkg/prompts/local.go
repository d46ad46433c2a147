package prompts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalStore keeps prompt revisions as files in a directory. It is the
// bundled fallback for deployments without a remote store.
type LocalStore struct {
	dir string
}

// NewLocalStore builds a store over the given directory. The directory need
// not exist yet; a missing directory lists as empty.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// List implements Store.
func (s *LocalStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.dir)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, version, ok := parseFilename(e.Name())
		if !ok {
			continue
		}
		infos = append(infos, Info{Name: name, Version: version, Source: "local"})
	}
	return markLatest(infos), nil
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, name string, version int) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, Filename(name, version)))
	if os.IsNotExist(err) {
		return "", errors.Wrapf(ErrNotFound, "%s version %d", name, version)
	}
	if err != nil {
		return "", errors.Wrapf(err, "reading prompt %s version %d", name, version)
	}
	return string(data), nil
}

// Latest implements Store.
func (s *LocalStore) Latest(ctx context.Context, name string) (string, int, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return "", 0, err
	}
	for _, in := range infos {
		if in.Name == name && in.Latest {
			text, err := s.Get(ctx, name, in.Version)
			return text, in.Version, err
		}
	}
	return "", 0, errors.Wrap(ErrNotFound, name)
}

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, name string, version int, text string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", s.dir)
	}
	path := filepath.Join(s.dir, Filename(name, version))
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return errors.Wrapf(err, "writing prompt %s version %d", name, version)
	}
	return nil
}
