//go:build unix

package fileutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// SecureMkdirAll creates path and any missing parents with perm.
func SecureMkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// SecureChmod changes the mode of path.
func SecureChmod(path string, perm os.FileMode) error {
	return os.Chmod(path, perm)
}

// OpenAppend opens path for appending, creating it with perm. A symlink in
// the final component is rejected with ELOOP.
func OpenAppend(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|unix.O_NOFOLLOW|unix.O_CLOEXEC, perm)
}
