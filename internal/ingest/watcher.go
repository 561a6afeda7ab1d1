package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voxhall/audio-insights/constants"
)

type WatchConfig struct {
	Root        string        // recordings directory, watched recursively
	InitialScan bool          // if true, walk the root and emit existing files
	Debounce    time.Duration // coalesce rapid write/rename bursts
}

// StartWatcher watches the recordings root for new audio files and emits
// their paths relative to the root. Unsupported extensions are filtered
// here so downstream stages only see playable recordings.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		slog.Error("watcher start failed: no recordings root provided")
		return nil, nil, errors.New("no recordings root provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	emit := func(path string) {
		rel, relErr := filepath.Rel(cfg.Root, path)
		if relErr != nil {
			return
		}
		select {
		case evCh <- rel:
		default:
		}
	}

	// Add the root recursively
	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && constants.IsSupportedAudio(path) {
			emit(path)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to add recordings root", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		// The debounce timer ticks back into this select loop so
		// pending is only ever touched by this goroutine.
		var timer *time.Timer
		var tick <-chan time.Time
		pending := map[string]struct{}{}

		sendPending := func() {
			for p := range pending {
				emit(p)
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				tick = nil
				sendPending()
			case e := <-w.Events:
				// If a directory was created, start watching it too.
				if e.Op&fsnotify.Create == fsnotify.Create {
					tryAddDir(w, e.Name)
				}

				if constants.IsSupportedAudio(e.Name) && (e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename)) != 0 {
					pending[e.Name] = struct{}{}
					if cfg.Debounce > 0 {
						if timer == nil {
							timer = time.NewTimer(cfg.Debounce)
						} else {
							if !timer.Stop() {
								select {
								case <-timer.C:
								default:
								}
							}
							timer.Reset(cfg.Debounce)
						}
						tick = timer.C
					} else {
						sendPending()
					}
				}
			case werr := <-w.Errors:
				slog.Error("watcher error", "error", werr)
				select {
				case errCh <- werr:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// tryAddDir is best-effort: non-directories fail to add and the error is
// ignored.
func tryAddDir(w *fsnotify.Watcher, path string) {
	_ = w.Add(path)
}
