package decode

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DirWatcher watches a set of directories and invokes onRescan(dir) when a
// file is created, removed, or renamed inside one of them, implementing
// the "retried on next fetch if the file reappears" policy for FileSource
// nodes whose backing files were missing at load time.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	log      *logrus.Entry
	onRescan func(dir string)
	done     chan struct{}
}

// NewDirWatcher starts watching with onRescan called (from its own
// goroutine) whenever a watched directory changes.
func NewDirWatcher(onRescan func(dir string), log *logrus.Entry) (*DirWatcher, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dw := &DirWatcher{
		watcher:  w,
		log:      log.WithField("component", "decode.watch"),
		onRescan: onRescan,
		done:     make(chan struct{}),
	}
	go dw.run()
	return dw, nil
}

// Watch adds path's containing directory (or path itself, if it is already
// a directory) to the watch set. Safe to call repeatedly for file masks
// sharing a directory; fsnotify deduplicates.
func (dw *DirWatcher) Watch(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return dw.watcher.Add(path)
	}
	return dw.watcher.Add(filepath.Dir(path))
}

func (dw *DirWatcher) run() {
	for {
		select {
		case ev, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				dw.log.WithField("path", ev.Name).Debug("directory change observed")
				dw.onRescan(filepath.Dir(ev.Name))
			}
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.log.WithError(err).Warn("directory watch error")
		case <-dw.done:
			return
		}
	}
}

// Close stops the watcher.
func (dw *DirWatcher) Close() error {
	close(dw.done)
	return dw.watcher.Close()
}
