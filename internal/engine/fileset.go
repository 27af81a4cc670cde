package engine

import "sort"

// FileSet is the in-memory output of a generation: relative paths mapped
// to file contents. The engine only ever emits a complete set — callers
// commit it to disk in one step or not at all.
type FileSet struct {
	files map[string][]byte
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{files: make(map[string][]byte)}
}

// Add records a file under a slash-separated relative path. Adding the
// same path twice overwrites, matching last-writer-wins layering.
func (fs *FileSet) Add(path string, data []byte) {
	fs.files[path] = data
}

// Get returns the contents recorded under path.
func (fs *FileSet) Get(path string) ([]byte, bool) {
	data, ok := fs.files[path]
	return data, ok
}

// Has reports whether path is in the set.
func (fs *FileSet) Has(path string) bool {
	_, ok := fs.files[path]
	return ok
}

// Paths returns every path in the set, sorted for stable iteration.
func (fs *FileSet) Paths() []string {
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the set.
func (fs *FileSet) Len() int {
	return len(fs.files)
}
