package linktool

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch re-runs Link whenever a search path changes on disk, delivering
// each fresh Result (or error) to onChange until ctx is cancelled.
//
// Grounded on internal/runtime/vfs/watch_fsnotify.go's FSNotifyWatcher.
// This does not contradict the "no dynamic module updates after a layer is
// created" Non-goal: every tick tears down and rebuilds a brand-new
// Resolution/Layer/image from scratch; no Layer returned by a previous
// tick is ever mutated.
func (t *Tool) Watch(ctx context.Context, onChange func(*Result, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range t.cfg.SearchPaths {
		if err := w.Add(root); err != nil {
			return err
		}
	}

	relink := func() {
		res, err := t.Link(ctx)
		onChange(res, err)
	}

	relink()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			relink()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			onChange(nil, err)
		}
	}
}
