//go:build windows

package fileutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// restrict replaces the DACL on path with a single ACE granting the current
// user full access. Directories pass the ACE on to their children.
func restrict(path string) error {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return fmt.Errorf("current user SID: %w", err)
	}

	inherit := uint32(windows.NO_INHERITANCE)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		inherit = windows.CONTAINER_INHERIT_ACE | windows.OBJECT_INHERIT_ACE
	}

	acl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.GENERIC_ALL,
		AccessMode:        windows.SET_ACCESS,
		Inheritance:       inherit,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_USER,
			TrusteeValue: windows.TrusteeValueFromSID(user.User.Sid),
		},
	}}, nil)
	if err != nil {
		return fmt.Errorf("build ACL: %w", err)
	}

	return windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.SECURITY_INFORMATION(windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION),
		nil, nil, acl, nil)
}

// restrictBestEffort applies restrict for owner-only modes. The file already
// carries the requested mode bits, so a DACL failure is only logged.
func restrictBestEffort(path string, perm os.FileMode) {
	if !ownerOnly(perm) {
		return
	}
	if err := restrict(path); err != nil {
		slog.Warn("restrict file access failed", "path", path, "error", err)
	}
}

// SecureMkdirAll creates path and any missing parents. Owner-only modes
// restrict every directory it created.
func SecureMkdirAll(path string, perm os.FileMode) error {
	var created []string
	for p := filepath.Clean(path); ; {
		if _, err := os.Stat(p); err == nil {
			break
		}
		created = append(created, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	for _, dir := range created {
		restrictBestEffort(dir, perm)
	}
	return nil
}

// SecureChmod changes the mode of path.
func SecureChmod(path string, perm os.FileMode) error {
	if err := os.Chmod(path, perm); err != nil {
		return err
	}
	restrictBestEffort(path, perm)
	return nil
}

// OpenAppend opens path for appending, creating it with perm. Windows has
// no O_NOFOLLOW, so reparse points are followed.
func OpenAppend(path string, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return nil, err
	}
	restrictBestEffort(path, perm)
	return f, nil
}
