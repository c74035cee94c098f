// Package fileutil writes the files teledash owns: config.toml, the
// dashboard log and the message exports.
//
// Owner-only modes (perm&0077 == 0) are enforced with a restrictive DACL on
// Windows. OpenAppend refuses to follow a symlink in the final path
// component where the platform supports it.
package fileutil

import "os"

func ownerOnly(perm os.FileMode) bool {
	return perm&0077 == 0
}
