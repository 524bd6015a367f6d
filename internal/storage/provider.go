// Package storage defines the file-system abstraction under the category store.
package storage

import "github.com/starford/mldataset/internal/models"

// Provider is the interface for operations on the store root.
// All paths are relative to the root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Dirs lists the names of the direct subdirectories of the root.
	Dirs() ([]string, error)
	// Mkdir creates dir (and parents) unless it exists. created is false when
	// the directory was already there.
	Mkdir(dir string) (created bool, err error)
	// RemoveDir removes dir and everything below it. dir must exist.
	RemoveDir(dir string) error
	// Files returns name, size and modification time for the regular files
	// directly inside dir.
	Files(dir string) ([]models.ItemMetadata, error)
	// Checksum returns the hex SHA-256 of the file at path.
	Checksum(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
