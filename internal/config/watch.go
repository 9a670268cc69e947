package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces the burst of events one save produces (truncate,
// write, chmod, or rename+create from atomic-save editors) into one reload.
const settleDelay = 200 * time.Millisecond

// Delta lists the entry names of one section that differ between two loads.
type Delta struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Empty reports whether the section is unchanged.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff describes how a reloaded configuration differs from the running one.
type Diff struct {
	General   bool
	Monitors  Delta
	Actions   Delta
	Listeners Delta
}

// Empty reports whether nothing that affects the running process changed.
func (d Diff) Empty() bool {
	return !d.General && d.Monitors.Empty() && d.Actions.Empty() && d.Listeners.Empty()
}

// Compare returns the differences between the running settings and a
// reload. Entries are matched by name, so reordering alone is not a change
// except for listeners, whose order decides dispatch order.
func Compare(running, next *Settings) Diff {
	return Diff{
		General:   running.General != next.General,
		Monitors:  compareSpecs(running.Monitors, next.Monitors),
		Actions:   compareSpecs(running.Actions, next.Actions),
		Listeners: compareListeners(running.Listeners, next.Listeners),
	}
}

func compareSpecs(old, next []ComponentSpec) Delta {
	var d Delta
	prev := make(map[string]ComponentSpec, len(old))
	for _, s := range old {
		prev[s.Name] = s
	}
	for _, s := range next {
		p, ok := prev[s.Name]
		switch {
		case !ok:
			d.Added = append(d.Added, s.Name)
		case p.Type != s.Type || !reflect.DeepEqual(p.Options, s.Options):
			d.Changed = append(d.Changed, s.Name)
		}
		delete(prev, s.Name)
	}
	for _, s := range old {
		if _, gone := prev[s.Name]; gone {
			d.Removed = append(d.Removed, s.Name)
		}
	}
	return d
}

func compareListeners(old, next []Listener) Delta {
	var d Delta
	prev := make(map[string]Listener, len(old))
	for _, l := range old {
		prev[l.Name] = l
	}
	for _, l := range next {
		p, ok := prev[l.Name]
		switch {
		case !ok:
			d.Added = append(d.Added, l.Name)
		case p != l:
			d.Changed = append(d.Changed, l.Name)
		}
		delete(prev, l.Name)
	}
	for _, l := range old {
		if _, gone := prev[l.Name]; gone {
			d.Removed = append(d.Removed, l.Name)
		}
	}
	if d.Empty() && !slices.Equal(old, next) {
		// Same bindings, new order: dispatch order changes.
		for _, l := range next {
			d.Changed = append(d.Changed, l.Name)
		}
	}
	return d
}

// Watch reloads the settings whenever the config file or the env file
// changes and calls onChange with the reload and its Diff against the
// previous successful load, starting from running. Reloads that fail or
// change nothing are logged and not reported. Watch runs until ctx is
// cancelled and never touches running components.
func (s Source) Watch(ctx context.Context, running *Settings, onChange func(*Settings, Diff)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directories: atomic saves replace the file's inode, which
	// drops a watch placed on the file itself.
	files := map[string]bool{filepath.Clean(s.Path): true}
	if s.EnvFile != "" {
		files[filepath.Clean(s.EnvFile)] = true
	}
	dirs := map[string]bool{}
	for f := range files {
		dirs[filepath.Dir(f)] = true
	}
	if _, err := os.Stat(s.Path); err != nil {
		return err
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	slog.Info("config: watching for changes", "path", s.Path, "env_file", s.EnvFile)

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(event.Name)] || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			settle.Reset(settleDelay)

		case <-settle.C:
			next, err := s.Load()
			if err != nil {
				slog.Error("config: reload failed, keeping previous settings", "path", s.Path, "err", err)
				continue
			}
			diff := Compare(running, next)
			if diff.Empty() {
				slog.Debug("config: reloaded, nothing changed", "path", s.Path)
				continue
			}
			slog.Info("config: changed",
				"path", s.Path,
				"general", diff.General,
				"monitors", diff.Monitors,
				"actions", diff.Actions,
				"listeners", diff.Listeners,
			)
			running = next
			onChange(next, diff)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
