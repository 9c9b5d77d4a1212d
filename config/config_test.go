package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tmc.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDecodesFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
import_roots = ["lib", "vendor"]
alphabet = ["0", "1"]
strict_match_exhaustiveness = true
`)
	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"lib", "vendor"}, f.ImportRoots)
	require.Equal(t, []string{"0", "1"}, f.Alphabet)
	require.True(t, f.StrictMatchExhaustiveness)
}

func TestFindWalksUpToAncestor(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `alphabet = ["0"]`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	path, ok := Find(nested)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "tmc.toml"), path)
}

func TestFindReturnsFalseWhenAbsent(t *testing.T) {
	_, ok := Find(t.TempDir())
	require.False(t, ok)
}

func TestMergeAlphabetIsAdditiveAndDeduplicates(t *testing.T) {
	f := &File{Alphabet: []string{"0", "1"}}
	got := f.MergeAlphabet([]string{"1", "x"})
	require.Equal(t, []string{"0", "1", "x"}, got)
}

func TestMergeAlphabetWithNilConfig(t *testing.T) {
	var f *File
	got := f.MergeAlphabet([]string{"0"})
	require.Equal(t, []string{"0"}, got)
}

func TestStrictOrsConfigAndFlag(t *testing.T) {
	f := &File{StrictMatchExhaustiveness: false}
	require.True(t, f.Strict(true))
	require.False(t, f.Strict(false))

	f.StrictMatchExhaustiveness = true
	require.True(t, f.Strict(false))
}
