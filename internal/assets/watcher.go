package assets

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// HotReload watches a set of search roots and re-runs the load for any
// tracked asset whose source file changes on disk, using an fsnotify
// loop like am.ConfigWatcher's but aimed at asset files under
// SearchRoots. Unlike ConfigWatcher it does not debounce: every Write
// or Create event triggers a reload at once.
type HotReload struct {
	mgr *Manager
	fsw *fsnotify.Watcher

	stop     chan struct{}
	stopOnce sync.Once
}

// StartHotReload watches roots (non-recursively; each entry is added
// directly to the fsnotify watcher) and reloads any asset previously
// requested through LoadAsync whose path receives a Write or Create
// event. Call Close to stop watching.
func (m *Manager) StartHotReload(roots []string) (*HotReload, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := fsw.Add(root); err != nil {
			m.log.Warnw("hot reload: cannot watch search root", logger.FieldPath, root, "error", err)
		}
	}

	hr := &HotReload{mgr: m, fsw: fsw, stop: make(chan struct{})}
	go hr.watchLoop()
	return hr, nil
}

func (h *HotReload) watchLoop() {
	for {
		select {
		case <-h.stop:
			return
		case event, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.mgr.reloadPath(event.Name)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			h.mgr.log.Warnw("hot reload watcher error", "error", err)
		}
	}
}

// Close stops the watch loop and releases the underlying fsnotify handle.
func (h *HotReload) Close() error {
	h.stopOnce.Do(func() { close(h.stop) })
	return h.fsw.Close()
}

// reloadPath re-triggers load_async for the tracked asset at path, if
// any, resetting its record to Queued and resubmitting the parse/upload
// job pair. Observers registered through a prior LoadAsync call fire
// again on completion, same as a fresh load.
func (m *Manager) reloadPath(path string) {
	m.assetsMu.RLock()
	id, tracked := m.pathToID[path]
	m.assetsMu.RUnlock()
	if !tracked {
		return
	}

	rec := m.getRecord(id)
	if rec == nil {
		return
	}
	loader := m.findLoader(path)
	if loader == nil {
		return
	}

	rec.mu.Lock()
	if rec.state != Ready && rec.state != Failed {
		rec.mu.Unlock()
		return
	}
	rec.state = Queued
	rec.done = make(chan struct{})
	rec.doneOnce = sync.Once{}
	rec.err = nil
	rec.mu.Unlock()

	m.log.Infow("hot reload: re-triggering load_async", logger.FieldPath, path)
	m.submitLoad(rec, loader, Normal)
}
