// Package prompts is a versioned registry of analysis prompt texts. Keys
// are prompt names and values are ordered lists of immutable revisions,
// stored as files named
//
//	prompt_{name}_{version}.txt
//
// e.g. prompt_default_0.txt or prompt_dan_2.txt. Two backends exist: a
// remote S3 store and a local filesystem fallback, usually combined through
// MergedStore.
package prompts

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a prompt name or version does not exist.
var ErrNotFound = errors.New("prompt not found")

// filePattern matches the versioned prompt filename convention. The name
// group is greedy so prompt names may themselves contain underscores.
var filePattern = regexp.MustCompile(`^prompt_(.+)_(\d+)\.txt$`)

// DefaultPrompt is the built-in fallback used when no versioned "default"
// prompt is available from any backend.
const DefaultPrompt = `Analyze this image. Describe what you see. Respond in the following JSON format

` + "```JSON" + `
{
    "mood": str,
    "number_of_people": int,
    "description": str
}
` + "```"

// Info describes one stored prompt revision.
type Info struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Latest  bool   `json:"latest"`
	Source  string `json:"source"`
}

// Store is a versioned prompt backend.
type Store interface {
	// List returns every stored revision, sorted by name then version,
	// with Latest set on the highest version of each name.
	List(ctx context.Context) ([]Info, error)

	// Get returns the text of one revision.
	Get(ctx context.Context, name string, version int) (string, error)

	// Latest returns the text and version of the newest revision of name.
	Latest(ctx context.Context, name string) (string, int, error)

	// Put stores a new revision. Revisions are immutable; writing an
	// existing version overwrites it byte-for-byte only on backends that
	// allow it.
	Put(ctx context.Context, name string, version int, text string) error
}

// Filename renders the storage filename for a prompt revision.
func Filename(name string, version int) string {
	return fmt.Sprintf("prompt_%s_%d.txt", name, version)
}

// parseFilename extracts the prompt name and version from a storage
// filename, reporting whether it matched the convention.
func parseFilename(filename string) (string, int, bool) {
	m := filePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", 0, false
	}
	version, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], version, true
}

// markLatest sorts infos by name then version and flags the newest revision
// of each name.
func markLatest(infos []Info) []Info {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Version < infos[j].Version
	})

	maxVersion := make(map[string]int)
	for _, in := range infos {
		if v, ok := maxVersion[in.Name]; !ok || in.Version > v {
			maxVersion[in.Name] = in.Version
		}
	}
	for i := range infos {
		infos[i].Latest = infos[i].Version == maxVersion[infos[i].Name]
	}
	return infos
}

// GetDefault fetches the latest revision of the "default" prompt, falling
// back to the built-in DefaultPrompt when the store has none.
func GetDefault(ctx context.Context, s Store) string {
	if s == nil {
		return DefaultPrompt
	}
	text, _, err := s.Latest(ctx, "default")
	if err != nil {
		return DefaultPrompt
	}
	return text
}
