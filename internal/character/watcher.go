package character

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"convo/internal/logging"
)

// Watcher reports character-card changes so a front end can refresh its
// card list without restarting.
type Watcher struct {
	fw      *fsnotify.Watcher
	Changes chan string
	done    chan struct{}
}

// Watch starts watching dir for card file creation, modification and
// removal. Changed card file names are delivered on Changes.
func Watch(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:      fw,
		Changes: make(chan string, 16),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.Changes)
	log := logging.Get(logging.CategoryCharacter)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !isCard(name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Info("card change: %s (%s)", name, ev.Op)
			select {
			case w.Changes <- name:
			default:
				// Drop when the consumer lags; the next event re-triggers.
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Error("watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

func isCard(name string) bool {
	return strings.HasSuffix(name, ".json") ||
		strings.HasSuffix(name, ".yaml") ||
		strings.HasSuffix(name, ".yml")
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
