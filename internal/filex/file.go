// Package filex holds small filesystem helpers for the client's local data
// directory.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureSubDir creates dirName under the current working directory if needed
// and returns its absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ReadOrCreate returns the file's contents, or writes fallback and returns
// it when the file does not exist yet. Used for the cache key salt, which is
// generated once and reused across runs.
func ReadOrCreate(path string, fallback []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.WriteFile(path, fallback, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return fallback, nil
}
