// Package version implements the single version ordering shared by the
// scripting runtime gate and the language file loader.
//
// A version is written "major.minor.patch" with an optional "-suffix"
// (build or patch level). The suffix is kept for display but never takes part
// in comparisons: two versions are ordered by their version code,
//
//	major*10000 + minor*100 + patch
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Engine is the version of the engine itself. Language files declare the
	// engine version they were written for and are checked against it.
	Engine = "0.6.0"

	// Runtime versions grove's object model: programs, handles, the
	// script bindings and their calling convention. It is not the version
	// of the embedded gopher-lua interpreter, which go.mod pins.
	Runtime = "0.6.1"

	// MinRuntime is the oldest object runtime this engine build accepts.
	MinRuntime = "0.5.4"
)

// ErrIncompatible is returned when a version check fails.
var ErrIncompatible = errors.New("incompatible version")

// Version is a parsed major.minor.patch triple.
type Version struct {
	Major, Minor, Patch int
	// Suffix is whatever followed the first '-' (empty if none).
	Suffix string
}

// Parse reads a version string. Missing minor or patch components default to
// zero ("1.2" is 1.2.0); non-numeric components are an error.
func Parse(s string) (Version, error) {
	var v Version
	core := strings.TrimSpace(s)
	if i := strings.IndexByte(core, '-'); i >= 0 {
		v.Suffix = core[i+1:]
		core = core[:i]
	}
	if core == "" {
		return Version{}, fmt.Errorf("parse version %q: empty", s)
	}
	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("parse version %q: too many components", s)
	}
	dst := [3]*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 99 && i > 0 {
			return Version{}, fmt.Errorf("parse version %q: bad component %q", s, p)
		}
		*dst[i] = n
	}
	return v, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// compiled-in constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic("version: " + err.Error())
	}
	return v
}

// Code returns the monotonic version code. The suffix is ignored.
func (v Version) Code() int {
	return v.Major*10000 + v.Minor*100 + v.Patch
}

// Compare returns -1, 0 or +1 depending on whether v orders before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	a, b := v.Code(), o.Code()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String formats the version, including the suffix when present.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		s += "-" + v.Suffix
	}
	return s
}

// Code parses s and returns its version code, or 0 if s is malformed.
func Code(s string) int {
	v, err := Parse(s)
	if err != nil {
		return 0
	}
	return v.Code()
}

// Require checks that linked is at least min. It returns an error wrapping
// ErrIncompatible when linked orders before min, and a parse error when
// either string is malformed.
func Require(min, linked string) error {
	want, err := Parse(min)
	if err != nil {
		return err
	}
	got, err := Parse(linked)
	if err != nil {
		return err
	}
	if got.Code() < want.Code() {
		return fmt.Errorf("requires at least %s (using: %s): %w", want, got, ErrIncompatible)
	}
	return nil
}

// NotNewerThan checks that v does not require a newer release than current.
// Resource files written for a later engine fail this check.
func NotNewerThan(v, current Version) error {
	if v.Code() > current.Code() {
		return fmt.Errorf("version %s is newer than %s: %w", v, current, ErrIncompatible)
	}
	return nil
}
