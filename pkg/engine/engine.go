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

// Package engine walks a source tree and performs copy-then-optionally-delete
// transfers in two phases: the whole tree is planned before anything mutates,
// then the plan executes with partial-failure semantics. Path policy lives in
// pathguard; the engine refuses to touch the filesystem until both endpoints
// pass it.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/datasync/pkg/config"
	"github.com/walteh/datasync/pkg/oplog"
	"github.com/walteh/datasync/pkg/pathguard"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 📨 Request describes one transfer. Immutable once handed to Transfer.
type Request struct {
	Source      string
	Destination string
	Mode        Mode

	// Overwrite allows replacing existing destination files; it ORs with the
	// engine config's Overwrite.
	Overwrite bool

	// IgnorePatterns adds doublestar globs to the config's ignore set.
	IgnorePatterns []string

	// TimeoutPerItem overrides the config's per-item timeout when non-zero.
	TimeoutPerItem time.Duration

	// Parallel overrides the config's execute-phase concurrency when non-zero.
	Parallel int
}

// 📣 ItemStatus is what the reporter hears about each item
type ItemStatus int

const (
	StatusCopied ItemStatus = iota
	StatusMoved
	StatusFailed
)

// String returns a string representation of ItemStatus
func (s ItemStatus) String() string {
	switch s {
	case StatusCopied:
		return "copied"
	case StatusMoved:
		return "moved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 🔌 Reporter receives progress for presentation. The engine stays
// presentation-free; a CLI or GUI plugs in here.
type Reporter interface {
	// StartOperation announces the number of files the plan intends to process
	StartOperation(ctx context.Context, total int)
	// UpdateStatus reports one item's fate
	UpdateStatus(ctx context.Context, path string, status ItemStatus)
	// UpdateProgress reports the running count of completed items
	UpdateProgress(ctx context.Context, done int)
	// FinishOperation announces the end of the operation
	FinishOperation(ctx context.Context)
}

// 🔇 NopReporter discards all progress
type NopReporter struct{}

func (NopReporter) StartOperation(context.Context, int)              {}
func (NopReporter) UpdateStatus(context.Context, string, ItemStatus) {}
func (NopReporter) UpdateProgress(context.Context, int)              {}
func (NopReporter) FinishOperation(context.Context)                  {}

// 🔧 Options contains the engine's collaborators
type Options struct {
	// Config is the engine configuration
	Config *config.Config
	// Guard validates and canonicalizes endpoint paths
	Guard *pathguard.Guard
	// OpLog is the append-only audit sink, one record per request
	OpLog *oplog.Log
	// Reporter receives progress; nil means no reporting
	Reporter Reporter
}

// ⚙️ Engine performs transfers. Safe for concurrent use by independent
// requests; the audit log serializes its own appends.
type Engine struct {
	cfg      *config.Config
	guard    *pathguard.Guard
	oplog    *oplog.Log
	reporter Reporter
}

// 🏭 New creates an engine with the given collaborators
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("path guard is required")
	}
	if opts.OpLog == nil {
		return nil, errors.New("operation log is required")
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	return &Engine{
		cfg:      opts.Config,
		guard:    opts.Guard,
		oplog:    opts.OpLog,
		reporter: opts.Reporter,
	}, nil
}

// 🏃 Transfer validates, plans, and executes one request, then appends one
// audit record. Validation failures abort before any filesystem mutation;
// execution failures are per-item and siblings continue. An audit-log write
// failure lands in Result.LogErr, never in Result.Outcome.
func (e *Engine) Transfer(ctx context.Context, req Request) Result {
	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("source", req.Source).
		Str("destination", req.Destination).
		Stringer("mode", req.Mode).
		Msg("transfer requested")

	res := e.transfer(ctx, req)

	if err := e.oplog.Record(oplog.Entry{
		Time:        time.Now(),
		Mode:        req.Mode.String(),
		Source:      req.Source,
		Destination: req.Destination,
		Outcome:     res.outcomeLine(),
	}); err != nil {
		res.LogErr = err
		logger.Warn().Err(err).Msg("operation log write failed")
	}
	return res
}

func (e *Engine) transfer(ctx context.Context, req Request) Result {
	src, err := e.guard.Validate(req.Source, pathguard.RoleSource)
	if err != nil {
		return fatalResult(err)
	}
	dst, err := e.guard.Validate(req.Destination, pathguard.RoleDestination)
	if err != nil {
		return fatalResult(err)
	}
	if err := e.guard.CheckPair(src, dst); err != nil {
		return fatalResult(err)
	}

	overwrite := req.Overwrite || e.cfg.Overwrite
	patterns := append(append([]string{}, req.IgnorePatterns...), e.cfg.IgnorePatterns...)

	timeout := req.TimeoutPerItem
	if timeout == 0 {
		// config was validated at load time; a bad duration cannot reach here
		timeout, _ = e.cfg.ItemTimeout()
	}
	parallel := req.Parallel
	if parallel == 0 {
		parallel = e.cfg.Parallel
	}

	plan, err := buildPlan(ctx, src, dst, planOptions{
		overwrite:      overwrite,
		ignorePatterns: patterns,
	})
	if err != nil {
		return Result{
			Outcome:   OutcomeFailure,
			ErrorKind: KindInvalidPath,
			Message:   err.Error(),
		}
	}

	return e.execute(ctx, req.Mode, plan, overwrite, timeout, parallel)
}

// execute runs the plan: directories first so empty ones are mirrored, then
// files, serially or bounded-parallel. Cancellation is checked at item
// boundaries; per-item failures never stop siblings.
func (e *Engine) execute(ctx context.Context, mode Mode, plan *transferPlan, overwrite bool, timeout time.Duration, parallel int) Result {
	e.reporter.StartOperation(ctx, plan.itemCount())
	defer e.reporter.FinishOperation(ctx)

	itemErrs := append([]ItemError(nil), plan.failed...)
	for _, it := range plan.failed {
		e.reporter.UpdateStatus(ctx, it.Path, StatusFailed)
	}

	processed := 0
	cancelled := false

	for _, d := range plan.dirs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := os.MkdirAll(d.dst, 0755); err != nil {
			itemErrs = append(itemErrs, ItemError{Path: d.dst, Kind: kindFromFSError(err), Err: err})
			e.reporter.UpdateStatus(ctx, d.dst, StatusFailed)
		}
	}

	okStatus := StatusCopied
	if mode == ModeMove {
		okStatus = StatusMoved
	}

	if !cancelled && parallel > 1 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)

		for _, f := range plan.files {
			f := f
			if gctx.Err() != nil {
				cancelled = true
				break
			}
			g.Go(func() error {
				ierr := transferItem(gctx, f, mode, overwrite, timeout)
				if ierr != nil && ierr.Kind == KindCancelled {
					return ierr.Err
				}
				mu.Lock()
				if ierr != nil {
					itemErrs = append(itemErrs, *ierr)
				} else {
					processed++
				}
				done := processed
				mu.Unlock()
				if ierr != nil {
					e.reporter.UpdateStatus(ctx, f.src, StatusFailed)
				} else {
					e.reporter.UpdateStatus(ctx, f.src, okStatus)
					e.reporter.UpdateProgress(ctx, done)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			cancelled = true
		}
	} else if !cancelled {
		for _, f := range plan.files {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			ierr := transferItem(ctx, f, mode, overwrite, timeout)
			if ierr != nil {
				if ierr.Kind == KindCancelled {
					cancelled = true
					break
				}
				itemErrs = append(itemErrs, *ierr)
				e.reporter.UpdateStatus(ctx, f.src, StatusFailed)
				continue
			}
			processed++
			e.reporter.UpdateStatus(ctx, f.src, okStatus)
			e.reporter.UpdateProgress(ctx, processed)
		}
	}

	// A move prunes emptied source directories, deepest first. os.Remove
	// refuses a non-empty directory, which is exactly the behavior wanted
	// when some child failed to move.
	if mode == ModeMove && !cancelled {
		for i := len(plan.dirs) - 1; i >= 0; i-- {
			_ = os.Remove(plan.dirs[i].src)
		}
	}

	res := Result{
		ItemsProcessed: processed,
		ItemsFailed:    len(itemErrs),
		ItemErrors:     itemErrs,
	}
	switch {
	case cancelled || ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
		res.ErrorKind = KindCancelled
		res.Message = fmt.Sprintf("cancelled after %d of %d items", processed, plan.itemCount())
	case len(itemErrs) == 0:
		res.Outcome = OutcomeSuccess
		res.Message = fmt.Sprintf("%s complete: %d items", mode, processed)
	case processed > 0:
		res.Outcome = OutcomePartialSuccess
		res.ErrorKind = aggregateKind(itemErrs)
		res.Message = fmt.Sprintf("%s partially complete: %d ok, %d failed", mode, processed, len(itemErrs))
	default:
		res.Outcome = OutcomeFailure
		res.ErrorKind = aggregateKind(itemErrs)
		res.Message = fmt.Sprintf("%s failed: %s", mode, res.ErrorKind)
	}
	return res
}

// fatalResult maps a validation failure onto a Result. Nothing was mutated.
func fatalResult(err error) Result {
	kind := KindInvalidPath
	switch {
	case errors.Is(err, pathguard.ErrUnsafeDestination):
		kind = KindUnsafeDestination
	case errors.Is(err, pathguard.ErrSameLocation):
		kind = KindSameLocation
	case errors.Is(err, pathguard.ErrDestinationInsideSource):
		kind = KindDestinationInsideSource
	}
	return Result{
		Outcome:   OutcomeFailure,
		ErrorKind: kind,
		Message:   err.Error(),
	}
}
