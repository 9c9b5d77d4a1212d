// Package config loads tmc.toml (spec.md §4.8's ambient configuration
// layer): import search roots, a baseline alphabet, and the strictness
// switch for ambiguous/non-exhaustive matches. It is deliberately thin —
// BurntSushi/toml does the actual parsing, the way vartan leans on its own
// dependencies rather than hand-rolling format support.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// File is the decoded shape of tmc.toml.
type File struct {
	ImportRoots               []string `toml:"import_roots"`
	Alphabet                  []string `toml:"alphabet"`
	StrictMatchExhaustiveness bool     `toml:"strict_match_exhaustiveness"`
}

// Load decodes the TOML file at path. A missing file is an error here, so
// callers that want a config file's absence to be silent should use Find
// first and only call Load on the path it returns.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Find looks for tmc.toml in dir and then in every ancestor directory up
// to the filesystem root, the way a project-local config file is
// conventionally discovered, and returns the first match.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, "tmc.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// MergeAlphabet returns the configured alphabet extended by cliAlphabet,
// in that order, deduplicated: tmc.toml sets the baseline and
// repeatable --alphabet flags are additive on top of it (SPEC_FULL.md
// §4.8), never a replacement.
func (f *File) MergeAlphabet(cliAlphabet []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(syms []string) {
		for _, s := range syms {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	if f != nil {
		add(f.Alphabet)
	}
	add(cliAlphabet)
	return out
}

// Strict reports the effective strictness: nil File means no config file
// was found, in which case the CLI flag is authoritative.
func (f *File) Strict(cliStrict bool) bool {
	if f == nil {
		return cliStrict
	}
	return f.StrictMatchExhaustiveness || cliStrict
}
