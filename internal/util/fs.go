package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin keeps name inside root by dropping any directory part.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// ListFilesWithExt returns the regular files directly under dir whose extension
// matches ext case-insensitively, sorted by path. Subdirectories are not walked.
func ListFilesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			paths = append(paths, SafeJoin(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
