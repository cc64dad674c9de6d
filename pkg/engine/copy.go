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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const copyBufSize = 128 * 1024

// errDestinationAppeared marks a file that showed up at the destination after
// planning but before the final rename.
var errDestinationAppeared = errors.New("destination appeared during transfer")

// 📄 copyFile streams item.src into item.dst. The bytes land in a temp file
// in the destination directory which is renamed into place only once fully
// written, so cancellation or timeout never leaves a truncated destination.
// The context is checked between chunks; metadata (mode, mtime) is applied
// best-effort and its failure is reported separately from the copy itself.
func copyFile(ctx context.Context, item planItem, overwrite bool) (metaErr, err error) {
	in, err := os.Open(item.src)
	if err != nil {
		return nil, errors.Errorf("opening source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(item.dst), 0755); err != nil {
		return nil, errors.Errorf("creating parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(item.dst), ".datasync-*")
	if err != nil {
		return nil, errors.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buf := make([]byte, copyBufSize)
	for {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			return nil, err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				err = errors.Errorf("writing destination: %w", werr)
				return nil, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			err = errors.Errorf("reading source: %w", rerr)
			return nil, err
		}
	}

	if serr := tmp.Sync(); serr != nil {
		err = errors.Errorf("flushing destination: %w", serr)
		return nil, err
	}
	if cerr := tmp.Close(); cerr != nil {
		err = errors.Errorf("closing destination: %w", cerr)
		return nil, err
	}

	// The plan already checked for a collision; re-check right before the
	// rename so a file that appeared mid-operation is not clobbered silently.
	if !overwrite {
		if _, serr := os.Lstat(item.dst); serr == nil {
			err = errors.Errorf("%q: %w", item.dst, errDestinationAppeared)
			os.Remove(tmpName)
			return nil, err
		}
	}
	if rerr := os.Rename(tmpName, item.dst); rerr != nil {
		err = errors.Errorf("renaming into place: %w", rerr)
		os.Remove(tmpName)
		return nil, err
	}

	// Best-effort metadata preservation. Not a failed copy if it misses.
	if merr := os.Chmod(item.dst, item.mode.Perm()); merr != nil {
		metaErr = merr
	}
	if fi, serr := os.Stat(item.src); serr == nil {
		if merr := os.Chtimes(item.dst, fi.ModTime(), fi.ModTime()); merr != nil && metaErr == nil {
			metaErr = merr
		}
	}
	return metaErr, nil
}

// 🚚 transferItem performs one file's copy (and for a move, the verified
// delete of the source). No destructive step happens until the destination
// provably holds the full content.
func transferItem(ctx context.Context, item planItem, mode Mode, overwrite bool, timeout time.Duration) *ItemError {
	itemCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	metaErr, err := copyFile(itemCtx, item, overwrite)
	if err != nil {
		return &ItemError{Path: item.src, Kind: kindFromFSError(err), Err: err}
	}
	if metaErr != nil {
		zerolog.Ctx(ctx).Warn().Str("path", item.dst).Err(metaErr).
			Msg("could not preserve file metadata")
	}

	if mode != ModeMove {
		return nil
	}

	// Verify before destroying: the source is removed only when the
	// destination's size matches what the source held at plan time.
	dstInfo, err := os.Stat(item.dst)
	if err != nil {
		return &ItemError{Path: item.src, Kind: KindVerificationFailed,
			Err: errors.Errorf("verifying destination: %w", err)}
	}
	if dstInfo.Size() != item.size {
		return &ItemError{Path: item.src, Kind: KindVerificationFailed,
			Err: errors.Errorf("destination has %d bytes, source had %d",
				dstInfo.Size(), item.size)}
	}
	if err := os.Remove(item.src); err != nil {
		return &ItemError{Path: item.src, Kind: kindFromFSError(err),
			Err: errors.Errorf("removing moved source: %w", err)}
	}
	return nil
}

// kindFromFSError maps a low-level failure onto the result taxonomy
func kindFromFSError(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, errDestinationAppeared):
		return KindDestinationExists
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	default:
		return KindIO
	}
}
