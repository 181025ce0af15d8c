package pdf

import (
	"io/fs"
	"os"
	"time"
)

// FileSystem is the slice of the OS the pipeline and reclaimer touch.
type FileSystem interface {
	MkdirAll(dir string, perm os.FileMode) error
	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
	ReadDir(dir string) ([]fs.DirEntry, error)
	Rename(oldPath, newPath string) error

	// Remove deletes path and succeeds when it is already gone.
	Remove(path string) error

	// ShellRemove deletes path through the platform shell.
	ShellRemove(path string) error
}

// LocalFileSystem is the FileSystem backed by the real OS.
type LocalFileSystem struct {
	platform Platform
}

func NewLocalFileSystem(platform Platform) *LocalFileSystem {
	return &LocalFileSystem{platform: platform}
}

func (lfs *LocalFileSystem) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (lfs *LocalFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (lfs *LocalFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (lfs *LocalFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (lfs *LocalFileSystem) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

func (lfs *LocalFileSystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Remove uses RemoveAll, which is nil for a missing path.
func (lfs *LocalFileSystem) Remove(path string) error {
	return os.RemoveAll(path)
}

func (lfs *LocalFileSystem) ShellRemove(path string) error {
	argv := lfs.platform.ShellDelete(path)
	_, err := execCommandWithTimeout(ShellDeleteTimeout, argv[0], argv[1:]...)
	return err
}

// Clock lets tests run backoff loops without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

// SystemClock is the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
