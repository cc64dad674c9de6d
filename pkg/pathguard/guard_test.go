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

package pathguard_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/datasync/pkg/pathguard"
	"gitlab.com/tozd/go/errors"
)

// 🧪 newGuard creates a guard with no extra prefixes
func newGuard(t *testing.T) *pathguard.Guard {
	t.Helper()
	g, err := pathguard.New(nil)
	require.NoError(t, err)
	return g
}

// 🧪 canonTempDir returns a symlink-free temp dir
func canonTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// 🧪 TestValidateSource tests source-role validation
func TestValidateSource(t *testing.T) {
	g := newGuard(t)
	tmp := canonTempDir(t)

	file := filepath.Join(tmp, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	t.Run("existing_file", func(t *testing.T) {
		got, err := g.Validate(file, pathguard.RoleSource)
		require.NoError(t, err)
		assert.Equal(t, file, got)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := g.Validate(filepath.Join(tmp, "nope.txt"), pathguard.RoleSource)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrInvalidPath))
	})

	t.Run("empty_path", func(t *testing.T) {
		_, err := g.Validate("", pathguard.RoleSource)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrInvalidPath))
	})

	t.Run("nul_byte", func(t *testing.T) {
		_, err := g.Validate("a\x00b", pathguard.RoleSource)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrInvalidPath))
	})
}

// 🧪 TestValidateDestination tests destination-role validation and the denylist
func TestValidateDestination(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("denylist paths are unix-shaped")
	}
	g := newGuard(t)
	tmp := canonTempDir(t)

	t.Run("new_leaf_under_existing_dir", func(t *testing.T) {
		want := filepath.Join(tmp, "out", "a.txt")
		got, err := g.Validate(want, pathguard.RoleDestination)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("denied_root", func(t *testing.T) {
		_, err := g.Validate("/etc", pathguard.RoleDestination)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrUnsafeDestination))
	})

	t.Run("denied_descendant", func(t *testing.T) {
		_, err := g.Validate("/etc/datasync/evil.conf", pathguard.RoleDestination)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrUnsafeDestination))
	})

	t.Run("sibling_of_denied_prefix_is_allowed", func(t *testing.T) {
		// /etcfoo shares a string prefix with /etc but is a different segment
		got, err := g.Validate("/etcfoo/x", pathguard.RoleDestination)
		require.NoError(t, err)
		assert.Equal(t, "/etcfoo/x", got)
	})

	t.Run("traversal_into_denied_root", func(t *testing.T) {
		depth := strings.Count(tmp, "/") + 2
		p := filepath.Join(tmp, strings.Repeat("../", depth), "etc", "passwd")
		_, err := g.Validate(p, pathguard.RoleDestination)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrUnsafeDestination))
	})

	t.Run("symlink_into_denied_root", func(t *testing.T) {
		link := filepath.Join(tmp, "sneaky")
		require.NoError(t, os.Symlink("/etc", link))
		_, err := g.Validate(filepath.Join(link, "shadow"), pathguard.RoleDestination)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrUnsafeDestination))
	})

	t.Run("source_role_skips_denylist", func(t *testing.T) {
		// Reading from a system directory is fine; only writes are guarded.
		got, err := g.Validate("/etc", pathguard.RoleSource)
		require.NoError(t, err)
		assert.Equal(t, "/etc", got)
	})
}

// 🧪 TestValidateIdempotent tests that validation is deterministic
func TestValidateIdempotent(t *testing.T) {
	g := newGuard(t)
	tmp := canonTempDir(t)
	p := filepath.Join(tmp, "out", "deep", "leaf.txt")

	first, err1 := g.Validate(p, pathguard.RoleDestination)
	second, err2 := g.Validate(p, pathguard.RoleDestination)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

// 🧪 TestCheckPair tests endpoint-pair rejection
func TestCheckPair(t *testing.T) {
	g := newGuard(t)
	tmp := canonTempDir(t)
	src := filepath.Join(tmp, "src")
	require.NoError(t, os.Mkdir(src, 0755))

	t.Run("same_location", func(t *testing.T) {
		err := g.CheckPair(src, src)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrSameLocation))
	})

	t.Run("destination_inside_source", func(t *testing.T) {
		err := g.CheckPair(src, filepath.Join(src, "sub", "copy"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrDestinationInsideSource))
	})

	t.Run("disjoint", func(t *testing.T) {
		assert.NoError(t, g.CheckPair(src, filepath.Join(tmp, "dst")))
	})

	t.Run("source_inside_destination_is_fine_here", func(t *testing.T) {
		// The collision (destination already exists) is the engine's call.
		assert.NoError(t, g.CheckPair(filepath.Join(src, "sub"), src))
	})
}

// 🧪 TestNewGuard tests denylist construction
func TestNewGuard(t *testing.T) {
	t.Run("relative_extra_rejected", func(t *testing.T) {
		_, err := pathguard.New([]string{"relative/path"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, pathguard.ErrInvalidPath))
	})

	t.Run("extras_merge_with_builtin", func(t *testing.T) {
		g, err := pathguard.New([]string{"/srv/protected"})
		require.NoError(t, err)
		assert.Contains(t, g.DenyPrefixes(), "/srv/protected")
		if runtime.GOOS != "windows" {
			assert.Contains(t, g.DenyPrefixes(), "/etc")
		}

		_, err = g.Validate("/srv/protected/x", pathguard.RoleDestination)
		assert.True(t, errors.Is(err, pathguard.ErrUnsafeDestination))
	})

	t.Run("duplicate_extras_collapse", func(t *testing.T) {
		g, err := pathguard.New([]string{"/srv/p", "/srv/p/", "/srv/p"})
		require.NoError(t, err)
		count := 0
		for _, p := range g.DenyPrefixes() {
			if p == "/srv/p" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

// 🧪 FuzzValidate feeds arbitrary strings into Validate; it must never panic
// and every accepted path must come back canonical and absolute.
func FuzzValidate(f *testing.F) {
	f.Add("/tmp/a/../b")
	f.Add("../../etc/passwd")
	f.Add("./x//y/./z")
	f.Add("")
	f.Add("a\x00b")

	g, err := pathguard.New(nil)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, path string) {
		for _, role := range []pathguard.Role{pathguard.RoleSource, pathguard.RoleDestination} {
			got, err := g.Validate(path, role)
			if err != nil {
				continue
			}
			if !filepath.IsAbs(got) {
				t.Errorf("Validate(%q, %v) accepted non-absolute %q", path, role, got)
			}
			if got != filepath.Clean(got) {
				t.Errorf("Validate(%q, %v) returned non-clean %q", path, role, got)
			}
		}
	})
}
