package storage

import (
	"fmt"
	"os"
)

// OS reads and writes arbitrary paths on the local file system, without a
// workspace root. It is what the command-line tools use.
type OS struct{}

var _ FileIO = OS{}

// Read returns the contents of the file at path.
func (OS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the file at path. The parent directory must exist.
func (OS) Write(path string, content []byte) error {
	return writeAtomic(path, content)
}
