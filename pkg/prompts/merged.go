package prompts

import (
	"context"

	"github.com/pkg/errors"
)

// MergedStore combines a remote store with a local fallback using a
// read-through strategy that prefers the remote backend. Version sets are
// unioned per prompt name; a version present in both backends resolves from
// the remote one. Contents are never compared, so a local revision shadowed
// by a remote revision with the same number is silently unreachable — a
// known trade-off of the numbering scheme.
type MergedStore struct {
	remote Store
	local  Store
}

// NewMergedStore combines a remote and a local backend. Either may be nil.
func NewMergedStore(remote, local Store) *MergedStore {
	return &MergedStore{remote: remote, local: local}
}

// List implements Store. A remote listing failure degrades to the local
// backend rather than failing the call, matching the offline-fallback
// intent of the local store.
func (s *MergedStore) List(ctx context.Context) ([]Info, error) {
	var remote, local []Info
	if s.remote != nil {
		if infos, err := s.remote.List(ctx); err == nil {
			remote = infos
		}
	}
	if s.local != nil {
		infos, err := s.local.List(ctx)
		if err != nil {
			if len(remote) == 0 {
				return nil, err
			}
		} else {
			local = infos
		}
	}

	seen := make(map[string]map[int]bool)
	merged := make([]Info, 0, len(remote)+len(local))
	for _, in := range remote {
		if seen[in.Name] == nil {
			seen[in.Name] = make(map[int]bool)
		}
		seen[in.Name][in.Version] = true
		merged = append(merged, in)
	}
	for _, in := range local {
		if seen[in.Name][in.Version] {
			continue
		}
		if seen[in.Name] == nil {
			seen[in.Name] = make(map[int]bool)
		}
		seen[in.Name][in.Version] = true
		merged = append(merged, in)
	}
	return markLatest(merged), nil
}

// Get implements Store: remote first, then local.
func (s *MergedStore) Get(ctx context.Context, name string, version int) (string, error) {
	if s.remote != nil {
		if text, err := s.remote.Get(ctx, name, version); err == nil {
			return text, nil
		}
	}
	if s.local != nil {
		return s.local.Get(ctx, name, version)
	}
	return "", errors.Wrapf(ErrNotFound, "%s version %d", name, version)
}

// Latest implements Store over the merged version set.
func (s *MergedStore) Latest(ctx context.Context, name string) (string, int, error) {
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

// Put implements Store. New revisions go to the remote backend when one is
// configured, otherwise to the local one.
func (s *MergedStore) Put(ctx context.Context, name string, version int, text string) error {
	if s.remote != nil {
		return s.remote.Put(ctx, name, version, text)
	}
	if s.local != nil {
		return s.local.Put(ctx, name, version, text)
	}
	return errors.New("no prompt backend configured")
}
