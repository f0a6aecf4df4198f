package core

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDirPath returns true if the given path denotes a directory target or
// directory dependency, as judged purely by its textual form: a path whose
// string ends in a platform separator is a directory, everything else is a
// file. This is never derived from stat-ing the filesystem; directory-ness
// is a property of how a path was declared, not of what currently exists
// there (a not-yet-built directory target still has isDirPath == true).
func IsDirPath(path string) bool {
	return strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator))
}

// PathExists returns true if the given path exists, regardless of type.
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsRegularFile returns true if path exists and is a regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDirectory returns true if path exists and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ToLongPathSafe canonicalises a path for use as a map key / comparison value.
// On the platforms this engine targets there is no MAX_PATH restriction to work
// around (that's a Windows-only concern in the system this was modelled on), so
// this just cleans the path while preserving any trailing separator, since that
// carries directory-ness information that filepath.Clean would otherwise discard.
func ToLongPathSafe(path string) string {
	if path == "" {
		return path
	}
	dir := IsDirPath(path)
	clean := filepath.Clean(path)
	if dir && !strings.HasSuffix(clean, string(filepath.Separator)) {
		clean += string(filepath.Separator)
	}
	return clean
}

// EnsureDir creates the parent directory of path if it doesn't already exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if PathExists(dir) {
		return nil
	}
	return os.MkdirAll(dir, 0775)
}
