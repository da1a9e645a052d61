// Package assetfs is a layered virtual filesystem for game assets.
//
// A Store stacks an optional override layer (user or mod content) on top of
// a primary layer (the engine's base content). Paths are slash-separated and
// relative to the layer roots. A path present in the override layer shadows
// the same path in the primary layer.
package assetfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Origin classifies where a file was resolved from.
type Origin uint8

const (
	Primary  Origin = iota // base engine content
	Override               // user or mod content layered on top
)

func (o Origin) String() string {
	if o == Override {
		return "override"
	}
	return "primary"
}

// ErrNotFound is returned when a path exists in no layer.
var ErrNotFound = errors.New("asset not found")

// Store resolves asset paths against a primary and an optional override layer.
type Store struct {
	primary  afero.Fs
	override afero.Fs

	// host directories backing the layers, empty for in-memory layers
	primaryDir  string
	overrideDir string
}

// New creates a store over the given layers. override may be nil.
func New(primary, override afero.Fs) *Store {
	if primary == nil {
		panic("assetfs: nil primary layer")
	}
	return &Store{primary: primary, override: override}
}

// NewOS creates a store rooted at dataDir with an optional userDir override
// layer. The primary layer is read-only.
func NewOS(dataDir, userDir string) *Store {
	primary := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dataDir))
	var override afero.Fs
	if userDir != "" {
		override = afero.NewBasePathFs(afero.NewOsFs(), userDir)
	}
	s := New(primary, override)
	s.primaryDir = dataDir
	s.overrideDir = userDir
	return s
}

// clean normalizes p to a slash-separated path relative to the layer root.
func clean(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(p, "/")
}

func fileExists(fsys afero.Fs, p string) bool {
	if fsys == nil {
		return false
	}
	info, err := fsys.Stat(p)
	return err == nil && !info.IsDir()
}

// resolve returns the layer a file lives in, honoring override shadowing.
func (s *Store) resolve(p string) (afero.Fs, Origin, error) {
	p = clean(p)
	if fileExists(s.override, p) {
		return s.override, Override, nil
	}
	if fileExists(s.primary, p) {
		return s.primary, Primary, nil
	}
	return nil, Primary, fmt.Errorf("%s: %w", p, ErrNotFound)
}

// Exists reports whether p names a file in any layer.
func (s *Store) Exists(p string) bool {
	_, _, err := s.resolve(p)
	return err == nil
}

// Origin reports which layer p resolves to.
func (s *Store) Origin(p string) (Origin, error) {
	_, o, err := s.resolve(p)
	return o, err
}

// IsPrimary reports whether p resolves to the primary layer. Missing files
// are not primary.
func (s *Store) IsPrimary(p string) bool {
	_, o, err := s.resolve(p)
	return err == nil && o == Primary
}

// ReadFile reads the resolved file.
func (s *Store) ReadFile(p string) ([]byte, error) {
	fsys, _, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(fsys, clean(p))
}

// FullPath returns the host path of the resolved file when the layer is
// backed by the OS filesystem, and the logical path otherwise.
func (s *Store) FullPath(p string) string {
	_, o, err := s.resolve(p)
	if err != nil {
		return clean(p)
	}
	dir := s.primaryDir
	if o == Override {
		dir = s.overrideDir
	}
	if dir == "" {
		return clean(p)
	}
	return filepath.Join(dir, filepath.FromSlash(clean(p)))
}

// File is a discovered asset.
type File struct {
	Path   string // logical, slash-separated
	Origin Origin
}

// ForEachFile calls fn for every file under dir whose name ends in ext (any
// extension if ext is empty), across both layers, each logical path once.
// Files are visited in lexical path order. Subdirectories are visited only
// when recursive is set. A non-nil error from fn stops the walk and is
// returned as is.
func (s *Store) ForEachFile(dir, ext string, recursive bool, fn func(File) error) error {
	files, err := s.List(dir, ext, recursive)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// List returns the files ForEachFile would visit.
func (s *Store) List(dir, ext string, recursive bool) ([]File, error) {
	dir = clean(dir)
	seen := make(map[string]Origin)
	for _, layer := range []struct {
		fsys   afero.Fs
		origin Origin
	}{{s.primary, Primary}, {s.override, Override}} {
		if layer.fsys == nil {
			continue
		}
		if err := collect(layer.fsys, dir, ext, recursive, layer.origin, seen); err != nil {
			return nil, err
		}
	}
	files := make([]File, 0, len(seen))
	for p, o := range seen {
		files = append(files, File{Path: p, Origin: o})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func collect(fsys afero.Fs, dir, ext string, recursive bool, origin Origin, seen map[string]Origin) error {
	root := dir
	if root == "" {
		root = "."
	}
	ok, err := afero.DirExists(fsys, root)
	if err != nil || !ok {
		return nil
	}
	return afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if !recursive && clean(p) != clean(root) {
				return filepath.SkipDir
			}
			return nil
		}
		if ext != "" && !strings.HasSuffix(strings.ToLower(info.Name()), strings.ToLower(ext)) {
			return nil
		}
		seen[clean(p)] = origin
		return nil
	})
}
