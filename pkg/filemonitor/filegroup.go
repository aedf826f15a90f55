package filemonitor

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type FileGroupCallback func(event fsnotify.Event) error

// FileGroup names a set of files under a root directory selected by a base
// name pattern, minus blacklisted path fragments.
type FileGroup struct {
	ID         string
	Root       string
	PatternStr string

	pattern   *regexp.Regexp
	blacklist []string
	callbacks []FileGroupCallback
	mutex     sync.RWMutex
}

func NewFileGroup(id string, root string, pattern string, blacklist []string) (*FileGroup, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &FileGroup{
		ID:         id,
		Root:       root,
		PatternStr: pattern,
		pattern:    re,
		blacklist:  blacklist,
	}, nil
}

func (g *FileGroup) AddCallback(callback FileGroupCallback) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.callbacks = append(g.callbacks, callback)
}

func (g *FileGroup) Callbacks() []FileGroupCallback {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]FileGroupCallback(nil), g.callbacks...)
}

// Matches reports whether path belongs to this group.
func (g *FileGroup) Matches(path string) bool {
	if !strings.HasPrefix(path, g.Root) {
		return false
	}
	if g.blacklisted(path) {
		return false
	}
	return g.pattern.MatchString(filepath.Base(path))
}

func (g *FileGroup) blacklisted(path string) bool {
	for _, item := range g.blacklist {
		if strings.Contains(path, item) {
			return true
		}
	}
	return false
}

// List walks the group root and returns all current member files.
func (g *FileGroup) List() ([]string, error) {
	var files []string
	err := filepath.Walk(g.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if g.blacklisted(path) && path != g.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if g.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
