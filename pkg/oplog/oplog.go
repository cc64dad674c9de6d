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

// Package oplog is the append-only audit trail of transfer attempts. It is
// deliberately separate from the diagnostic zerolog output: one line per
// top-level operation, human and machine readable, never rewritten.
package oplog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// DefaultPath is where records land when no log path is configured.
const DefaultPath = "datasync_log.txt"

const timeLayout = "2006-01-02 15:04:05"

// 📼 Entry is one audit record. Owned by the log once handed to Record.
type Entry struct {
	Time        time.Time
	Mode        string // COPY or MOVE
	Source      string
	Destination string
	Outcome     string
}

// 📝 Log appends entries to a persistent sink. Safe for concurrent use:
// appends are serialized so concurrent operations never interleave lines.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// 🏭 Open opens (creating if needed) the append-only log at path
func Open(path string) (*Log, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Errorf("opening operation log %q: %w", path, err)
	}
	return &Log{file: f}, nil
}

// ➕ Record appends one entry and flushes it to disk. A failure here is the
// caller's to report through a secondary channel; it must never become the
// transfer's own error.
func (l *Log) Record(e Entry) error {
	line := fmt.Sprintf("[%s] %s %s -> %s : %s\n",
		e.Time.Format(timeLayout), e.Mode, e.Source, e.Destination, e.Outcome)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("operation log is closed")
	}
	if _, err := l.file.WriteString(line); err != nil {
		return errors.Errorf("appending log record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return errors.Errorf("flushing log record: %w", err)
	}
	return nil
}

// 🔒 Close flushes and releases the sink. Record fails after Close.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return errors.Errorf("closing operation log: %w", err)
	}
	return nil
}
