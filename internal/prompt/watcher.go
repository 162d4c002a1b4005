package prompt

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the template cache whenever a file under the base or
// override directories changes. It returns a stop function. Directories that
// do not exist yet are skipped; overrides created later need a restart.
func (r *Renderer) Watch() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := 0
	for _, dir := range append([]string{r.baseDir}, r.overrideDirs...) {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err == nil {
			watched++
		}
	}
	if watched == 0 {
		watcher.Close()
		return func() {}, nil
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					r.ClearCache()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: prompt watcher: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
