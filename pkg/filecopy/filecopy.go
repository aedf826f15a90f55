package filecopy

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// filecopy maintains temp-dir snapshots of files that other processes hold
// open with exclusive locks (sqlite stores on windows). A snapshot is reused
// until the source metadata changes.

var (
	fileLocks  = make(map[string]*sync.Mutex)
	locksMutex sync.Mutex

	pathToTemp = make(map[string]string)
	metadata   = make(map[string]fileMeta)
	mapMutex   sync.RWMutex

	tempDirOnce sync.Once
	tempDir     string
)

type fileMeta struct {
	ModTime time.Time
	Size    int64
}

func initTempDir(id string) string {
	tempDirOnce.Do(func() {
		tempDir = filepath.Join(os.TempDir(), "chatview_"+id)
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			tempDir = os.TempDir()
		}
	})
	return tempDir
}

func lockFor(path string) *sync.Mutex {
	locksMutex.Lock()
	defer locksMutex.Unlock()
	mu, ok := fileLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		fileLocks[path] = mu
	}
	return mu
}

// GetTempCopy returns a readable snapshot path for the given source file,
// copying it into the temp dir when no up-to-date snapshot exists. Only one
// goroutine copies a given source at a time.
func GetTempCopy(id string, path string) (string, error) {
	dir := initTempDir(id)

	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source failed: %w", err)
	}

	mapMutex.RLock()
	tempPath, haveTemp := pathToTemp[path]
	meta, haveMeta := metadata[path]
	mapMutex.RUnlock()

	if haveTemp && haveMeta && meta.ModTime.Equal(info.ModTime()) && meta.Size == info.Size() {
		if _, err := os.Stat(tempPath); err == nil {
			return tempPath, nil
		}
	}

	h := fnv.New64a()
	h.Write([]byte(path))
	target := filepath.Join(dir, fmt.Sprintf("%x_%s", h.Sum64(), filepath.Base(path)))

	if err := copyFile(path, target); err != nil {
		return "", err
	}

	mapMutex.Lock()
	old := pathToTemp[path]
	pathToTemp[path] = target
	metadata[path] = fileMeta{ModTime: info.ModTime(), Size: info.Size()}
	mapMutex.Unlock()

	// Delayed removal keeps open handles on the old snapshot alive.
	if old != "" && old != target {
		go func(stale string) {
			time.Sleep(30 * time.Second)
			os.Remove(stale)
		}(old)
	}

	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Cleanup removes all snapshots. Intended for tests and full cache clears.
func Cleanup() {
	mapMutex.Lock()
	defer mapMutex.Unlock()
	for _, tempPath := range pathToTemp {
		os.Remove(tempPath)
	}
	pathToTemp = make(map[string]string)
	metadata = make(map[string]fileMeta)
}
