/*
2026 © Postgres.ai
*/

package config

import (
	"os"
	"path/filepath"
)

// ResolvePath makes a relative path relative to the installation directory, the parent of the binary directory.
func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	if _, err := os.Stat(path); err == nil {
		return path
	}

	bindir, _ := filepath.Abs(filepath.Dir(os.Args[0]))
	dir, _ := filepath.Abs(filepath.Dir(bindir))

	return filepath.Join(dir, path)
}
