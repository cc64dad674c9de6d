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

package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📋 planItem is one pending action discovered during the plan phase
type planItem struct {
	rel  string // slash-separated path relative to the source root, "" = root
	src  string
	dst  string
	size int64
	mode fs.FileMode
}

// 🗺️ transferPlan is the full, ordered set of actions for one request.
// Planning completes for the whole tree before anything mutates: structural
// problems (collisions, unreadable directories) surface here, pre-recorded in
// failed, and the execute phase never revisits them.
type transferPlan struct {
	dirs   []planItem // parents strictly before children
	files  []planItem
	failed []ItemError
}

// itemCount is the number of files the plan intends to process
func (p *transferPlan) itemCount() int {
	return len(p.files)
}

// planOptions carries the knobs the plan phase needs
type planOptions struct {
	overwrite      bool
	ignorePatterns []string
}

// buildPlan enumerates the entire source tree with an explicit work-list (no
// recursion, deep trees cost heap not stack) and maps every entry to its
// destination. src and dst are canonical absolute paths.
func buildPlan(ctx context.Context, src, dst string, opts planOptions) (*transferPlan, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Lstat(src)
	if err != nil {
		return nil, errors.Errorf("source %q vanished before planning: %w", src, err)
	}

	plan := &transferPlan{}

	if !info.IsDir() {
		// Single file: the destination is the full target path.
		if itemErr := checkFileCollision(dst, opts.overwrite); itemErr != nil {
			plan.failed = append(plan.failed, *itemErr)
			return plan, nil
		}
		plan.files = append(plan.files, planItem{
			rel:  info.Name(),
			src:  src,
			dst:  dst,
			size: info.Size(),
			mode: info.Mode(),
		})
		return plan, nil
	}

	// Directory: mirror src's tree under dst itself.
	if itemErr := checkDirCollision(dst); itemErr != nil {
		plan.failed = append(plan.failed, *itemErr)
		return plan, nil
	}
	plan.dirs = append(plan.dirs, planItem{rel: "", src: src, dst: dst, mode: info.Mode()})

	type pending struct{ rel, path string }
	queue := []pending{{rel: "", path: src}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.path)
		if err != nil {
			plan.failed = append(plan.failed, ItemError{
				Path: cur.path,
				Kind: kindFromFSError(err),
				Err:  err,
			})
			continue
		}

		for _, entry := range entries {
			rel := entry.Name()
			if cur.rel != "" {
				rel = cur.rel + "/" + entry.Name()
			}
			if ignored(rel, opts.ignorePatterns) {
				logger.Debug().Str("path", rel).Msg("entry ignored by pattern")
				continue
			}

			srcPath := filepath.Join(cur.path, entry.Name())
			dstPath := filepath.Join(dst, filepath.FromSlash(rel))

			if entry.IsDir() {
				if itemErr := checkDirCollision(dstPath); itemErr != nil {
					plan.failed = append(plan.failed, *itemErr)
					continue
				}
				plan.dirs = append(plan.dirs, planItem{rel: rel, src: srcPath, dst: dstPath})
				queue = append(queue, pending{rel: rel, path: srcPath})
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				plan.failed = append(plan.failed, ItemError{
					Path: srcPath,
					Kind: kindFromFSError(err),
					Err:  err,
				})
				continue
			}
			if itemErr := checkFileCollision(dstPath, opts.overwrite); itemErr != nil {
				plan.failed = append(plan.failed, *itemErr)
				continue
			}
			plan.files = append(plan.files, planItem{
				rel:  rel,
				src:  srcPath,
				dst:  dstPath,
				size: fi.Size(),
				mode: fi.Mode(),
			})
		}
	}

	logger.Debug().
		Int("dirs", len(plan.dirs)).
		Int("files", len(plan.files)).
		Int("pre_failed", len(plan.failed)).
		Msg("transfer plan built")
	return plan, nil
}

// checkFileCollision refuses an existing destination file unless overwrite is
// set. A destination directory in a file's place is refused regardless.
func checkFileCollision(dst string, overwrite bool) *ItemError {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ItemError{Path: dst, Kind: kindFromFSError(err), Err: err}
	}
	if fi.IsDir() {
		return &ItemError{Path: dst, Kind: KindDestinationExists,
			Err: errors.Errorf("destination %q is an existing directory", dst)}
	}
	if !overwrite {
		return &ItemError{Path: dst, Kind: KindDestinationExists,
			Err: errors.Errorf("destination %q already exists", dst)}
	}
	return nil
}

// checkDirCollision allows merging into an existing destination directory but
// refuses a non-directory squatting on the path.
func checkDirCollision(dst string) *ItemError {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ItemError{Path: dst, Kind: kindFromFSError(err), Err: err}
	}
	if !fi.IsDir() {
		return &ItemError{Path: dst, Kind: KindDestinationExists,
			Err: errors.Errorf("destination %q exists and is not a directory", dst)}
	}
	return nil
}

// ignored checks rel (slash-separated) against the doublestar patterns
func ignored(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
