package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store persists attachment binaries on disk, one directory per
// message. The database keeps the path; the content lives here.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// SaveAttachment writes an attachment's content and returns the stored
// path. A name collision within the message directory gets a numeric
// suffix instead of overwriting.
func (s *Store) SaveAttachment(messageID uint, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.baseDir, strconv.FormatUint(uint64(messageID), 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := sanitizeFilename(filename)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%d_%s", i, name))
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Read returns the content stored at path
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove deletes the file at path
func (s *Store) Remove(path string) error {
	return os.Remove(path)
}

// sanitizeFilename strips path components from a remote-supplied name
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "attachment"
	}
	return name
}
