// Copyright 2025 Kadir Pekel
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

package cachefs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// staleIntakeAge is how long an intake staging file can sit untouched
// before the janitor considers it orphaned (an upload that never
// completed, e.g. the process crashed mid-write).
const staleIntakeAge = 2 * time.Hour

// Janitor watches a workspace root's intake/ directories for orphaned
// staging files left behind by interrupted uploads and removes them
// once they age past staleIntakeAge. It does not watch document or
// case-context directories: those are only ever written atomically by
// this package, so they never contain partial files to clean up.
type Janitor struct {
	root    string
	watcher *fsnotify.Watcher
}

// NewJanitor creates a janitor rooted at root (the same root passed to
// NewWorkspace). Call Run to start it; cancel the context to stop.
func NewJanitor(root string) (*Janitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Janitor{root: root, watcher: watcher}, nil
}

// Run watches for new intake directories (created as cases are
// onboarded) and periodically sweeps all known intake directories for
// stale files, until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	defer j.watcher.Close()

	casesDir := filepath.Join(j.root, "cases")
	if err := os.MkdirAll(casesDir, 0o755); err != nil {
		return err
	}
	if err := j.watcher.Add(casesDir); err != nil {
		return err
	}

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.sweep()
		case event, ok := <-j.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				intakeDir := filepath.Join(event.Name, "intake")
				if info, err := os.Stat(intakeDir); err == nil && info.IsDir() {
					if err := j.watcher.Add(intakeDir); err != nil {
						slog.Warn("janitor: failed to watch new intake directory", "path", intakeDir, "error", err)
					}
				}
			}
		case err, ok := <-j.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("janitor: watcher error", "error", err)
		}
	}
}

func (j *Janitor) sweep() {
	casesDir := filepath.Join(j.root, "cases")
	caseEntries, err := os.ReadDir(casesDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-staleIntakeAge)
	removed := 0

	for _, ce := range caseEntries {
		if !ce.IsDir() {
			continue
		}
		intakeDir := filepath.Join(casesDir, ce.Name(), "intake")
		entries, err := os.ReadDir(intakeDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || info.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(intakeDir, e.Name())
				if err := os.Remove(path); err == nil {
					removed++
				} else {
					slog.Warn("janitor: failed to remove stale intake file", "path", path, "error", err)
				}
			}
		}
	}

	if removed > 0 {
		slog.Info("janitor: removed stale intake files", "count", removed)
	}
}
