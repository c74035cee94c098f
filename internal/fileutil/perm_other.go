//go:build !windows && !unix

package fileutil

import "os"

func SecureMkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func SecureChmod(path string, perm os.FileMode) error {
	return os.Chmod(path, perm)
}

func OpenAppend(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
}
