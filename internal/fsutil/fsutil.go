// Generic filesystem helpers shared by the cache store
package fsutil

import (
	"io"
	"os"
)

// CreateFolder ensures dir and its parents exist
func CreateFolder(dir string) bool {
	return os.MkdirAll(dir, 0755) == nil
}

// DeleteAll removes a file or a whole directory tree.
// A path that does not exist counts as already deleted.
func DeleteAll(path string) bool {
	return os.RemoveAll(path) == nil
}

// CloseQuietly closes c and discards any error
func CloseQuietly(c io.Closer) {
	_ = c.Close()
}
