package pdf

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkingFilePair is the input/output file pair of one invocation. The
// timestamp plus random suffix keeps concurrent requests from colliding.
type WorkingFilePair struct {
	ID        string
	Input     string
	Output    string
	CreatedAt time.Time
}

func NewWorkingFilePair(workDir string, now time.Time) WorkingFilePair {
	id := fmt.Sprintf("%d_%s", now.UnixMilli(), uuid.NewString())
	return WorkingFilePair{
		ID:        id,
		Input:     filepath.Join(workDir, InputFilePrefix+id+".pdf"),
		Output:    filepath.Join(workDir, OutputFilePrefix+id+".pdf"),
		CreatedAt: now,
	}
}

// Handles returns fresh reclaim handles for both paths.
func (p WorkingFilePair) Handles() []*TempFileHandle {
	return []*TempFileHandle{
		NewTempFileHandle(p.Input, p.CreatedAt),
		NewTempFileHandle(p.Output, p.CreatedAt),
	}
}

// isWorkingFileName reports whether name follows the working-file or
// cleanup-marker naming convention.
func isWorkingFileName(name string) bool {
	return strings.HasPrefix(name, InputFilePrefix) ||
		strings.HasPrefix(name, OutputFilePrefix) ||
		strings.HasPrefix(name, CleanupLaterPrefix)
}

func isCleanupMarker(name string) bool {
	return strings.HasPrefix(name, CleanupLaterPrefix)
}
