package filemonitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileMonitor watches the directories of registered file groups and fans
// matching fsnotify events out to group callbacks.
type FileMonitor struct {
	groups    map[string]*FileGroup
	watcher   *fsnotify.Watcher
	watchDirs map[string]bool
	mutex     sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

func NewFileMonitor() *FileMonitor {
	return &FileMonitor{
		groups:    make(map[string]*FileGroup),
		watchDirs: make(map[string]bool),
	}
}

func (fm *FileMonitor) AddGroup(group *FileGroup) error {
	if group == nil {
		return errors.New("group cannot be nil")
	}

	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	if _, exists := fm.groups[group.ID]; exists {
		return fmt.Errorf("group with ID '%s' already exists", group.ID)
	}
	fm.groups[group.ID] = group

	if fm.isRunning {
		return fm.watchGroupLocked(group)
	}
	return nil
}

func (fm *FileMonitor) GetGroup(id string) (*FileGroup, bool) {
	fm.mutex.RLock()
	defer fm.mutex.RUnlock()
	group, exists := fm.groups[id]
	return group, exists
}

func (fm *FileMonitor) Start() error {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()

	if fm.isRunning {
		return errors.New("file monitor is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	fm.watcher = watcher
	fm.stopCh = make(chan struct{})
	fm.watchDirs = make(map[string]bool)
	fm.isRunning = true

	for _, group := range fm.groups {
		if err := fm.watchGroupLocked(group); err != nil {
			fm.watcher.Close()
			fm.watcher = nil
			fm.isRunning = false
			return fmt.Errorf("failed to setup watch for group '%s': %w", group.ID, err)
		}
	}

	fm.wg.Add(1)
	go fm.watchLoop()

	return nil
}

func (fm *FileMonitor) Stop() error {
	fm.mutex.Lock()
	if !fm.isRunning {
		fm.mutex.Unlock()
		return nil
	}
	fm.isRunning = false
	close(fm.stopCh)
	watcher := fm.watcher
	fm.watcher = nil
	fm.mutex.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	fm.wg.Wait()
	return nil
}

// watchGroupLocked registers the group root and its subdirectories with the
// watcher. Caller holds fm.mutex.
func (fm *FileMonitor) watchGroupLocked(group *FileGroup) error {
	return filepath.Walk(group.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if group.blacklisted(path) {
			return filepath.SkipDir
		}
		if fm.watchDirs[path] {
			return nil
		}
		if err := fm.watcher.Add(path); err != nil {
			log.Debug().Err(err).Msgf("failed to watch %s", path)
			return nil
		}
		fm.watchDirs[path] = true
		return nil
	})
}

func (fm *FileMonitor) watchLoop() {
	defer fm.wg.Done()

	for {
		fm.mutex.RLock()
		watcher := fm.watcher
		fm.mutex.RUnlock()
		if watcher == nil {
			return
		}

		select {
		case <-fm.stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			fm.dispatch(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Msg("file monitor error")
		}
	}
}

func (fm *FileMonitor) dispatch(event fsnotify.Event) {
	// New directories are folded into the watch set so nested shard layouts
	// keep reporting.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			fm.mutex.Lock()
			if fm.watcher != nil && !fm.watchDirs[event.Name] {
				if err := fm.watcher.Add(event.Name); err == nil {
					fm.watchDirs[event.Name] = true
				}
			}
			fm.mutex.Unlock()
		}
	}

	fm.mutex.RLock()
	groups := make([]*FileGroup, 0, len(fm.groups))
	for _, group := range fm.groups {
		groups = append(groups, group)
	}
	fm.mutex.RUnlock()

	for _, group := range groups {
		if !group.Matches(event.Name) {
			continue
		}
		for _, callback := range group.Callbacks() {
			if err := callback(event); err != nil {
				log.Debug().Err(err).Msgf("callback failed for %s", event.Name)
			}
		}
	}
}
