package server

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/chazu/lotus/pipeline"
)

// FileCache holds source text by path. Editors patch it with the content of
// open buffers; paths without an override are read from disk.
type FileCache struct {
	mu    sync.Mutex
	files map[string]string

	readFile func(string) ([]byte, error)
	readDir  func(string) ([]os.DirEntry, error)
}

// NewFileCache creates a cache backed by the local file system.
func NewFileCache() *FileCache {
	return &FileCache{
		files:    make(map[string]string),
		readFile: os.ReadFile,
		readDir:  os.ReadDir,
	}
}

// Put records content as the text of path.
func (c *FileCache) Put(path, content string) {
	c.mu.Lock()
	c.files[filepath.Clean(path)] = content
	c.mu.Unlock()
}

// Patch applies an optional override. A nil content leaves the cache as
// it is.
func (c *FileCache) Patch(path string, content *string) {
	if content != nil {
		c.Put(path, *content)
	}
}

// Delete drops the override for path; later reads go to disk.
func (c *FileCache) Delete(path string) {
	c.mu.Lock()
	delete(c.files, filepath.Clean(path))
	c.mu.Unlock()
}

// Get returns the text of path, from the cache when overridden.
func (c *FileCache) Get(path string) (string, error) {
	path = filepath.Clean(path)
	c.mu.Lock()
	src, ok := c.files[path]
	c.mu.Unlock()
	if ok {
		return src, nil
	}
	data, err := c.readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Siblings returns every source file in the directory of path, on disk or
// only in the cache, sorted. path itself is always included.
func (c *FileCache) Siblings(path string) []string {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	seen := map[string]bool{path: true}

	if entries, err := c.readDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == pipeline.SourceExt {
				seen[filepath.Join(dir, e.Name())] = true
			}
		}
	}
	c.mu.Lock()
	for p := range c.files {
		if filepath.Dir(p) == dir && filepath.Ext(p) == pipeline.SourceExt {
			seen[p] = true
		}
	}
	c.mu.Unlock()

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
