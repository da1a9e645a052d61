// Package lang loads translation strings from language files.
//
// A language file is a flat TOML document of string keys:
//
//	LANG_COMPATIBILITY = "0.6.0"
//	LANG_LANGUAGE      = "English"
//	OPTIONS_TITLE      = "Options"
//
// LANG_COMPATIBILITY names the engine version the file was written for. A file
// written for a newer engine than the running one is rejected.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/phanxgames/grove/assetfs"
	"github.com/phanxgames/grove/version"
)

// DefaultFile is loaded when a requested language file does not exist.
const DefaultFile = "languages/english.toml"

// CompatibilityKey holds the engine version a language file targets.
const CompatibilityKey = "LANG_COMPATIBILITY"

// missing is what Get returns for unknown keys.
const missing = "null"

var (
	// ErrMissingDefault means the default language file is absent; the
	// installation is broken.
	ErrMissingDefault = errors.New("missing default language file")

	// ErrIncompatible means the file targets a newer engine.
	ErrIncompatible = errors.New("incompatible language file")

	// ErrKeyNotFound is returned by ReadString.
	ErrKeyNotFound = errors.New("language key not found")
)

// Table is a loaded set of translation strings.
type Table struct {
	path    string
	strings map[string]string
}

// Loader reads language files from an asset store.
type Loader struct {
	Store  *assetfs.Store
	Engine version.Version
	Log    *zap.Logger
}

func (l *Loader) log() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

// Load reads path into a fresh table. A missing path falls back to
// DefaultFile; a missing DefaultFile is ErrMissingDefault.
func (l *Loader) Load(path string) (*Table, error) {
	t := &Table{strings: make(map[string]string)}
	if err := l.LoadInto(t, path); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadInto merges path into t, replacing existing keys.
func (l *Loader) LoadInto(t *Table, path string) error {
	log := l.log()
	log.Info("loading language file", zap.String("path", path))

	if !l.Store.Exists(path) {
		if path != DefaultFile {
			log.Warn("language file does not exist, using default",
				zap.String("path", path), zap.String("default", DefaultFile))
			return l.LoadInto(t, DefaultFile)
		}
		return fmt.Errorf("%q: %w", DefaultFile, ErrMissingDefault)
	}

	entries, err := l.decode(path)
	if err != nil {
		return err
	}

	compat := readCompatibility(entries)
	if err := version.NotNewerThan(compat, l.Engine); err != nil {
		return fmt.Errorf("language file %q (version %s) is not compatible with engine %s: %w",
			path, compat, l.Engine, ErrIncompatible)
	}

	for k, v := range entries {
		t.strings[k] = v
	}
	t.path = path
	return nil
}

func (l *Loader) decode(path string) (map[string]string, error) {
	data, err := l.Store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language file: %w", err)
	}
	entries := make(map[string]string)
	if _, err := toml.Decode(string(data), &entries); err != nil {
		return nil, fmt.Errorf("language file %q: %w", path, err)
	}
	return entries, nil
}

// ReadString reads one key straight from a file without loading it into a
// table. Keys match case-insensitively.
func (l *Loader) ReadString(path, key string) (string, error) {
	entries, err := l.decode(path)
	if err != nil {
		return "", err
	}
	for k, v := range entries {
		if strings.EqualFold(k, key) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s in %q: %w", key, path, ErrKeyNotFound)
}

// ReadCompatibility returns the engine version a language file targets, or
// 0.0.0 when the key is absent or malformed.
func (l *Loader) ReadCompatibility(path string) (version.Version, error) {
	entries, err := l.decode(path)
	if err != nil {
		return version.Version{}, err
	}
	return readCompatibility(entries), nil
}

func readCompatibility(entries map[string]string) version.Version {
	for k, v := range entries {
		if strings.EqualFold(k, CompatibilityKey) {
			parsed, err := version.Parse(v)
			if err != nil {
				return version.Version{}
			}
			return parsed
		}
	}
	return version.Version{}
}

// Get returns the string for key, or "null" if it is not defined.
func (t *Table) Get(key string) string {
	if s, ok := t.strings[key]; ok {
		return s
	}
	return missing
}

// Has reports whether key is defined.
func (t *Table) Has(key string) bool {
	_, ok := t.strings[key]
	return ok
}

// Path returns the most recently loaded file.
func (t *Table) Path() string { return t.path }

// Len returns the number of keys.
func (t *Table) Len() int { return len(t.strings) }
