// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package archive implements the per-domain append-only conversational log.
// Every query/response cycle lands here before the response reaches the
// caller; the same log is fed back into later prompts as memory context.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// entryDelimiter opens each archive entry; the timestamp keeps the format
// human-readable and machine-splittable.
const entryDelimiter = "=== %s ==="

// Archive is the append-only conversation log, one structured text file per
// domain. Appends within a domain serialize on a per-domain lock so
// concurrent queries never interleave entries.
type Archive struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// New creates an Archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// Append writes a timestamped (query, response) entry to the domain's log,
// creating the file and directory if absent. A write failure is logged and
// swallowed: archiving must never abort the user-facing response.
func (a *Archive) Append(domain, query, response string) {
	lock := a.domainLock(domain)
	lock.Lock()
	defer lock.Unlock()

	path := a.Path(domain)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("creating archive directory failed", "domain", domain, "error", err)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("opening archive failed", "domain", domain, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	entry := formatEntry(a.now().UTC(), query, response)
	if _, err := f.WriteString(entry); err != nil {
		slog.Warn("appending archive entry failed", "domain", domain, "error", err)
	}
}

// LoadRecent returns the most recent archive content up to maxChars,
// truncating from the oldest end so the newest exchanges always survive.
// A missing archive or read failure yields the empty string.
func (a *Archive) LoadRecent(domain string, maxChars int) string {
	lock := a.domainLock(domain)
	lock.Lock()
	defer lock.Unlock()

	raw, err := os.ReadFile(a.Path(domain))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("reading archive failed", "domain", domain, "error", err)
		}
		return ""
	}

	content := string(raw)
	if maxChars > 0 && len(content) > maxChars {
		cut := content[len(content)-maxChars:]
		// The byte cut can land mid-rune; trim forward to the next rune
		// start so the prompt never sees an invalid UTF-8 prefix.
		for len(cut) > 0 && !utf8.RuneStart(cut[0]) {
			cut = cut[1:]
		}
		return cut
	}
	return content
}

// Path returns the archive file location for a domain.
func (a *Archive) Path(domain string) string {
	return filepath.Join(a.dir, domain, "conversations.log")
}

func (a *Archive) domainLock(domain string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.locks[domain]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[domain] = lock
	}
	return lock
}

func formatEntry(ts time.Time, query, response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, entryDelimiter, ts.Format(time.RFC3339))
	b.WriteString("\nQ: ")
	b.WriteString(query)
	b.WriteString("\nA: ")
	b.WriteString(response)
	b.WriteString("\n\n")
	return b.String()
}
