// Package storage defines read access to the note directory.
package storage

// Entry describes one note file found in the note directory.
type Entry struct {
	Path string // file name relative to the note directory
}

// Provider is the interface for note directory reads.
type Provider interface {
	// Root returns the absolute path of the note directory.
	Root() string
	// List returns the regular files directly under the root whose extension is
	// exactly ext, in directory order. Sub-directories are not descended into.
	List(ext string) ([]Entry, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}
