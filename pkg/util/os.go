package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// FindFilesWithPattern returns files under directory whose base name matches
// the regular expression. Subdirectories are searched when recursive is true.
func FindFilesWithPattern(directory string, pattern string, recursive bool) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	dirInfo, err := os.Stat(directory)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory '%s': %w", directory, err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("'%s' is not a directory", directory)
	}

	var matched []string
	fsys := os.DirFS(directory)
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != "." {
				return fs.SkipDir
			}
			return nil
		}
		if re.MatchString(d.Name()) {
			matched = append(matched, filepath.Join(directory, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory failed: %w", err)
	}

	return matched, nil
}

// FindFileWithDepth searches directory for a file whose base name satisfies
// match, descending at most maxDepth levels. Walk errors on individual entries
// are skipped; the search is best effort.
func FindFileWithDepth(directory string, match func(base string) bool, maxDepth int) (string, error) {
	var found string
	fsys := os.DirFS(directory)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.Count(path, "/") >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if match(d.Name()) {
			found = filepath.Join(directory, path)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", os.ErrNotExist
	}
	return found, nil
}

func DefaultWorkDir(account string) string {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = filepath.Join(os.ExpandEnv("${USERPROFILE}"), "Documents", "chatview")
	case "darwin":
		base = filepath.Join(os.ExpandEnv("${HOME}"), "Documents", "chatview")
	default:
		base = filepath.Join(os.ExpandEnv("${HOME}"), "chatview")
	}
	if len(account) == 0 {
		return base
	}
	return filepath.Join(base, account)
}

// PrepareDir ensures that the specified directory path exists.
// If the directory does not exist, it attempts to create it.
func PrepareDir(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	} else if !stat.IsDir() {
		log.Debug().Msgf("%s is not a directory", path)
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
