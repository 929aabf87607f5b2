package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.artifact-index/logs, or a temp-dir equivalent
// when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".artifact-index", "logs")
	}
	return filepath.Join(home, ".artifact-index", "logs")
}

// DefaultLogPath returns the log file shared by all commands.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "index.log")
}
