// Package storage defines the file-system abstraction under the store.
package storage

import "time"

// Provider is the interface for data-directory file operations.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write overwrites path with content (relative to the root).
	Write(path string, content []byte) error
	// Move renames oldPath to newPath (both relative to the root).
	Move(oldPath, newPath string) error
	// ModTime returns the last modification time of path.
	ModTime(path string) (time.Time, error)
	// Abs returns the absolute location of path, for watchers.
	Abs(path string) (string, error)
}
