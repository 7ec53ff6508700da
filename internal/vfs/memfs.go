package vfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemFS is an in-memory FS used by tests so they don't touch disk.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	data []byte
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"": true},
	}
}

func (fs *MemFS) Create(name string) (WritableFile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := &memFile{}
	fs.files[name] = f
	return &memWritableFile{fs: fs, name: name}, nil
}

func (fs *MemFS) Open(name string) (SequentialFile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memSequentialFile{r: bytes.NewReader(append([]byte(nil), f.data...))}, nil
}

func (fs *MemFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memRandomAccessFile{data: append([]byte(nil), f.data...)}, nil
}

func (fs *MemFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[oldname]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldname, Err: os.ErrNotExist}
	}
	fs.files[newname] = f
	delete(fs.files, oldname)
	return nil
}

func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(fs.files, name)
	return nil
}

func (fs *MemFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[strings.TrimRight(path, "/")] = true
	return nil
}

func (fs *MemFS) Exists(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.files[name]
	return ok
}

func (fs *MemFS) ListDir(path string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := strings.TrimRight(path, "/") + "/"
	var names []string
	for name := range fs.files {
		if rest, ok := strings.CutPrefix(name, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (fs *MemFS) SyncDir(path string) error { return nil }

type memWritableFile struct {
	fs   *MemFS
	name string
}

func (w *memWritableFile) Write(p []byte) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	f, ok := w.fs.files[w.name]
	if !ok {
		return 0, fmt.Errorf("memfs: write to closed or removed file %q", w.name)
	}
	f.data = append(f.data, p...)
	return len(p), nil
}

func (w *memWritableFile) Close() error { return nil }
func (w *memWritableFile) Sync() error  { return nil }

func (w *memWritableFile) Size() (int64, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	f, ok := w.fs.files[w.name]
	if !ok {
		return 0, fmt.Errorf("memfs: stat closed or removed file %q", w.name)
	}
	return int64(len(f.data)), nil
}

type memSequentialFile struct {
	r *bytes.Reader
}

func (s *memSequentialFile) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *memSequentialFile) Close() error                { return nil }

type memRandomAccessFile struct {
	data []byte
}

func (r *memRandomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *memRandomAccessFile) Close() error { return nil }
func (r *memRandomAccessFile) Size() int64  { return int64(len(r.data)) }
