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

// Package status renders transfer progress for a human at a terminal. It
// implements the engine's Reporter interface; the engine itself stays
// presentation-free.
package status

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/datasync/pkg/engine"
)

// 📢 ConsoleReporter prints per-item lines and a running count
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	total   int
	success *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
}

// 🏭 NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		out:     out,
		success: pterm.Success.WithWriter(out),
		failure: pterm.Error.WithWriter(out),
	}
}

// 🚦 StartOperation announces the planned item count
func (r *ConsoleReporter) StartOperation(ctx context.Context, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	zerolog.Ctx(ctx).Debug().Int("total", total).Msg("operation started")
}

// 📝 UpdateStatus prints one item's fate
func (r *ConsoleReporter) UpdateStatus(ctx context.Context, path string, st engine.ItemStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch st {
	case engine.StatusFailed:
		r.failure.Println(FormatItem(path, st))
	default:
		r.success.Println(FormatItem(path, st))
	}
}

// 📊 UpdateProgress prints the running count
func (r *ConsoleReporter) UpdateProgress(ctx context.Context, done int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, FormatProgress(done, r.total))
}

// 🏁 FinishOperation ends the report
func (r *ConsoleReporter) FinishOperation(ctx context.Context) {
	zerolog.Ctx(ctx).Debug().Msg("operation finished")
}

// interface guard
var _ engine.Reporter = (*ConsoleReporter)(nil)
