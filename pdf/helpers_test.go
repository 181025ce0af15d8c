package pdf

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// fakeClock records sleeps instead of performing them.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fakeFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi fakeFileInfo) Name() string       { return fi.name }
func (fi fakeFileInfo) Size() int64        { return fi.size }
func (fi fakeFileInfo) Mode() fs.FileMode  { return 0600 }
func (fi fakeFileInfo) ModTime() time.Time { return fi.modTime }
func (fi fakeFileInfo) IsDir() bool        { return false }
func (fi fakeFileInfo) Sys() any           { return nil }

type fakeFile struct {
	data    []byte
	modTime time.Time
}

// fakeFS is an in-memory FileSystem whose removals can be made to fail with
// EBUSY a fixed number of times per path.
type fakeFS struct {
	mu          sync.Mutex
	files       map[string]*fakeFile
	busy        map[string]int
	removeErr   map[string]error
	removeCalls map[string]int
	shellErr    error
	renameErr   error
	renames     map[string]string
	panicOnStat bool
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		files:       map[string]*fakeFile{},
		busy:        map[string]int{},
		removeErr:   map[string]error{},
		removeCalls: map[string]int{},
		renames:     map[string]string{},
	}
}

func (f *fakeFS) add(path string, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{data: []byte("%PDF-1.4\n"), modTime: modTime}
}

func (f *fakeFS) exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *fakeFS) removes(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeCalls[path]
}

func (f *fakeFS) MkdirAll(string, os.FileMode) error { return nil }

func (f *fakeFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return file.data, nil
}

func (f *fakeFS) Stat(path string) (fs.FileInfo, error) {
	if f.panicOnStat {
		panic("stat exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return fakeFileInfo{name: filepath.Base(path), size: int64(len(file.data)), modTime: file.modTime}, nil
}

func (f *fakeFS) ReadDir(dir string) ([]fs.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []fs.DirEntry
	for path, file := range f.files {
		if filepath.Dir(path) != filepath.Clean(dir) {
			continue
		}
		info := fakeFileInfo{name: filepath.Base(path), size: int64(len(file.data)), modTime: file.modTime}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	return entries, nil
}

func (f *fakeFS) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	file, ok := f.files[oldPath]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}
	delete(f.files, oldPath)
	f.files[newPath] = file
	f.renames[oldPath] = newPath
	return nil
}

func (f *fakeFS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls[path]++
	if err := f.removeErr[path]; err != nil {
		return err
	}
	if f.busy[path] > 0 {
		f.busy[path]--
		return &fs.PathError{Op: "remove", Path: path, Err: syscall.EBUSY}
	}
	delete(f.files, path)
	return nil
}

func (f *fakeFS) ShellRemove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shellErr != nil {
		return f.shellErr
	}
	delete(f.files, path)
	return nil
}

// scriptedRunner answers version probes per executable without spawning.
type scriptedRunner struct {
	calls   atomic.Int32
	mu      sync.Mutex
	results map[string]error
	seen    []string
}

func newScriptedRunner(results map[string]error) *scriptedRunner {
	return &scriptedRunner{results: results}
}

func (r *scriptedRunner) Run(inv *Invocation) (*ProcessOutput, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.seen = append(r.seen, inv.Executable)
	err, ok := r.results[inv.Executable]
	r.mu.Unlock()

	if !ok {
		return nil, newCompressionError(KindSpawnError, "spawn "+inv.Executable, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return &ProcessOutput{Stdout: fakeVersion + "\n"}, nil
}

func (r *scriptedRunner) executables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

// countingRunner wraps a runner and counts spawns.
type countingRunner struct {
	inner ProcessRunner
	runs  atomic.Int32
}

func (r *countingRunner) Run(inv *Invocation) (*ProcessOutput, error) {
	r.runs.Add(1)
	return r.inner.Run(inv)
}
