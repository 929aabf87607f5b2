package artifact

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

// IDLen is the number of hex digits kept from the path digest.
const IDLen = 12

// ID derives a record id from the absolute path of its source document.
// The id follows the path, not the content: edits update the same row and a
// rename produces a new one. The digest is MD5 over the absolute path, which
// matches rows that earlier versions of the indexer wrote for single files.
// Their batch runs hashed paths relative to the working directory, so those
// rows get new ids and stay beside the fresh ones.
func ID(absPath string) string {
	sum := md5.Sum([]byte(absPath))
	return hex.EncodeToString(sum[:])[:IDLen]
}

// AbsPath resolves p against the working directory and cleans it.
func AbsPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
