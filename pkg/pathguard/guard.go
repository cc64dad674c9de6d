// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pathguard normalizes candidate paths and decides whether they are
// safe to use as transfer endpoints. Canonicalization, not string pattern
// matching, is the traversal defense: every path is resolved to its unique
// absolute form (symlinks followed, "."/".." collapsed) before it is compared
// against the deny prefixes.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🎭 Role says which end of a transfer a path is being validated for
type Role int

const (
	RoleSource Role = iota
	RoleDestination
)

// String returns a string representation of Role
func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// 🚫 Validation failures. Callers branch on these with errors.Is.
var (
	ErrInvalidPath             = errors.New("invalid path")
	ErrUnsafeDestination       = errors.New("unsafe destination")
	ErrSameLocation            = errors.New("source and destination are the same location")
	ErrDestinationInsideSource = errors.New("destination is inside the source tree")
)

// 🛡️ Guard validates paths against a set of canonical deny prefixes
type Guard struct {
	deny []string
}

// 🏭 New creates a Guard. The extra prefixes are merged with the built-in
// safety set; there is no way to shrink below the built-in set.
func New(extra []string) (*Guard, error) {
	seen := map[string]bool{}
	deny := make([]string, 0, len(builtinDenyPrefixes)+len(extra))
	for _, p := range builtinDenyPrefixes {
		if !seen[p] {
			seen[p] = true
			deny = append(deny, p)
		}
	}
	for _, p := range extra {
		if !filepath.IsAbs(p) {
			return nil, errors.Errorf("deny prefix %q: %w: must be absolute", p, ErrInvalidPath)
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			deny = append(deny, p)
		}
	}
	return &Guard{deny: deny}, nil
}

// 📋 DenyPrefixes returns the effective deny prefixes (built-in plus extras)
func (g *Guard) DenyPrefixes() []string {
	out := make([]string, len(g.deny))
	copy(out, g.deny)
	return out
}

// ✅ Validate resolves path to canonical absolute form and checks it against
// the policy for the given role. It returns the canonical path on success.
//
// A source must fully resolve: every component exists and is reachable. A
// destination may not exist yet, in which case the deepest existing ancestor
// is resolved and the remaining cleaned segments are re-joined, so that a
// traversal sequence aimed at an unborn path still collapses before the deny
// check. Validation is pure: same input plus same filesystem state yields the
// same result.
func (g *Guard) Validate(path string, role Role) (string, error) {
	canonical, err := g.canonicalize(path, role)
	if err != nil {
		return "", err
	}
	if role == RoleDestination {
		for _, prefix := range g.deny {
			if isWithin(prefix, canonical) {
				return "", errors.Errorf("%s resolves under %s: %w", path, prefix, ErrUnsafeDestination)
			}
		}
	}
	return canonical, nil
}

// 🔀 CheckPair rejects endpoint combinations that no transfer may use:
// identical canonical paths, and a destination nested inside the source.
// Both arguments must already be canonical (returned by Validate).
func (g *Guard) CheckPair(source, destination string) error {
	if source == destination {
		return errors.Errorf("%s: %w", source, ErrSameLocation)
	}
	if isWithin(source, destination) {
		return errors.Errorf("%s is under %s: %w", destination, source, ErrDestinationInsideSource)
	}
	return nil
}

// canonicalize resolves path to its unique absolute form. Symlinks are
// followed via EvalSymlinks so that a link pointing at a denied root cannot
// smuggle writes past the prefix check.
func (g *Guard) canonicalize(path string, role Role) (string, error) {
	if path == "" {
		return "", errors.Errorf("empty path: %w", ErrInvalidPath)
	}
	if strings.ContainsRune(path, 0) {
		return "", errors.Errorf("path contains NUL byte: %w", ErrInvalidPath)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving %q: %w", path, ErrInvalidPath)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", errors.Errorf("resolving %q: %v: %w", path, err, ErrInvalidPath)
	}
	if role == RoleSource {
		return "", errors.Errorf("source %q does not exist: %w", path, ErrInvalidPath)
	}

	// Destination leaf (or a suffix of it) does not exist yet. Resolve the
	// deepest existing ancestor and re-join the remaining segments; Clean has
	// already collapsed any ".." in abs, so the suffix cannot escape.
	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Hit the filesystem root without finding an existing ancestor.
			return abs, nil
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
		resolved, err = filepath.EvalSymlinks(dir)
		if err == nil {
			break
		}
		if !os.IsNotExist(err) {
			return "", errors.Errorf("resolving %q: %v: %w", path, err, ErrInvalidPath)
		}
	}
	for i := len(tail) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, tail[i])
	}
	return resolved, nil
}

// isWithin reports whether candidate equals prefix or sits below it. The
// comparison is segment-aware: /etcfoo is not within /etc.
func isWithin(prefix, candidate string) bool {
	if candidate == prefix {
		return true
	}
	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(candidate, prefix)
	}
	return strings.HasPrefix(candidate, prefix+string(filepath.Separator))
}
