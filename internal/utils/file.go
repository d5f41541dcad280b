package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SupportedExtensions are the lower-case extensions picked up by a scan
var SupportedExtensions = []string{"png", "jpg", "jpeg"}

// EnsureDir creates a directory and its parents; existing directories are fine
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the file extension without the dot, lower-cased
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(filename string) bool {
	return slices.Contains(SupportedExtensions, GetFileExtension(filename))
}

// ListImageFiles recursively lists all supported image files under dir.
// Any directory whose path equals one of skip is not descended into. Only a
// failure on dir itself aborts the scan; any other unreadable entry is
// reported to onSkip, when set, and left out.
func ListImageFiles(dir string, skip []string, onSkip func(path string, err error)) ([]string, error) {
	skipAbs := make([]string, 0, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipAbs = append(skipAbs, abs)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			if onSkip != nil {
				onSkip(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && len(skipAbs) > 0 {
				if abs, err := filepath.Abs(path); err == nil && slices.Contains(skipAbs, abs) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// MirrorPath returns where path, found under inputRoot, belongs under outputRoot
// along with its path relative to inputRoot
func MirrorPath(inputRoot, outputRoot, path string) (rel, out string, err error) {
	rel, err = filepath.Rel(inputRoot, path)
	if err != nil {
		return "", "", fmt.Errorf("relative path of %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s is outside %s", path, inputRoot)
	}
	return rel, filepath.Join(outputRoot, rel), nil
}
