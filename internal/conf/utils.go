// utils.go: shared helpers for resolving filesystem paths from configuration
package conf

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetBasePath expands environment variables in path, normalizes it, and
// makes sure the directory exists on disk.
func GetBasePath(path string) string {
	expandedPath := os.ExpandEnv(path)

	// Normalize the path to handle any irregularities such as trailing slashes.
	basePath := filepath.Clean(expandedPath)

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			fmt.Printf("failed to create directory '%s': %v\n", basePath, err)
		}
	}

	return basePath
}
