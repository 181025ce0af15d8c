package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TempFileState is the lifecycle of a working file once its process is done.
type TempFileState int

const (
	TempActive TempFileState = iota
	TempPendingDelete
	TempRenamedForLaterCleanup
	TempDeleted
)

func (s TempFileState) String() string {
	switch s {
	case TempActive:
		return "active"
	case TempPendingDelete:
		return "pending_delete"
	case TempRenamedForLaterCleanup:
		return "renamed_for_later_cleanup"
	case TempDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// TempFileHandle tracks one working file through reclamation.
type TempFileHandle struct {
	Path      string
	CreatedAt time.Time

	mu        sync.Mutex
	state     TempFileState
	attempts  int
	renamedTo string
}

func NewTempFileHandle(path string, createdAt time.Time) *TempFileHandle {
	return &TempFileHandle{Path: path, CreatedAt: createdAt}
}

func (h *TempFileHandle) State() TempFileState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *TempFileHandle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// RenamedTo is the cleanup marker path, set only in TempRenamedForLaterCleanup.
func (h *TempFileHandle) RenamedTo() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renamedTo
}

func (h *TempFileHandle) markPendingDelete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == TempActive {
		h.state = TempPendingDelete
	}
}

func (h *TempFileHandle) setAttempt(n int) {
	h.mu.Lock()
	h.attempts = n
	h.mu.Unlock()
}

func (h *TempFileHandle) finish(state TempFileState, renamedTo string) {
	h.mu.Lock()
	h.state = state
	h.renamedTo = renamedTo
	h.mu.Unlock()
}

// ReclaimPolicy bounds one reclaim run.
type ReclaimPolicy struct {
	MaxAttempts int
	AllowRename bool
}

var (
	defaultReclaimPolicy = ReclaimPolicy{MaxAttempts: MaxReclaimAttempts, AllowRename: true}
	sweepReclaimPolicy   = ReclaimPolicy{MaxAttempts: SweepReclaimAttempts, AllowRename: true}
)

// Reclaimer deletes working files after their process has closed, retrying
// through transient lock errors. It never reports failure to the request
// that produced the files.
type Reclaimer struct {
	fs       FileSystem
	clock    Clock
	platform Platform
	logger   *zap.Logger
	metrics  *Metrics

	// orphanAge is how old a working file must be before a sweep takes it.
	orphanAge time.Duration

	pending sync.WaitGroup
}

func NewReclaimer(fsys FileSystem, clock Clock, platform Platform, logger *zap.Logger, metrics *Metrics) *Reclaimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Reclaimer{
		fs:        fsys,
		clock:     clock,
		platform:  platform,
		logger:    logger,
		metrics:   metrics,
		orphanAge: OrphanAge,
	}
}

// Schedule takes ownership of pair and reclaims it in the background after the
// platform cleanup delay. The returned handles report progress.
func (r *Reclaimer) Schedule(pair WorkingFilePair) []*TempFileHandle {
	handles := pair.Handles()
	for _, h := range handles {
		h.markPendingDelete()
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("reclaim task panicked",
					zap.String("id", pair.ID),
					zap.Any("panic", rec))
			}
		}()

		r.clock.Sleep(r.platform.CleanupDelay)
		r.Reclaim(handles...)
	}()

	return handles
}

// Wait blocks until every scheduled reclaim has finished.
func (r *Reclaimer) Wait() {
	r.pending.Wait()
}

// Reclaim deletes each handle with the full retry policy.
func (r *Reclaimer) Reclaim(handles ...*TempFileHandle) {
	for _, h := range handles {
		r.reclaimOne(h, defaultReclaimPolicy)
	}
}

func (r *Reclaimer) reclaimOne(h *TempFileHandle, policy ReclaimPolicy) {
	h.markPendingDelete()
	logger := r.logger.With(zap.String("path", h.Path))

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		h.setAttempt(attempt)

		if _, err := r.fs.Stat(h.Path); errors.Is(err, fs.ErrNotExist) {
			r.deleted(h, logger)
			return
		}

		err := r.fs.Remove(h.Path)
		if err == nil {
			r.deleted(h, logger)
			return
		}
		lastErr = err

		if !r.platform.IsBusy(err) {
			logger.Warn("working file removal failed", zap.Int("attempt", attempt), zap.Error(err))
			break
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := r.platform.BackoffDelay(attempt)
		logger.Info("working file busy, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("file_age", r.clock.Now().Sub(h.CreatedAt)),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		r.clock.Sleep(delay)
	}

	r.lastResort(h, policy, lastErr, logger)
}

func (r *Reclaimer) lastResort(h *TempFileHandle, policy ReclaimPolicy, lastErr error, logger *zap.Logger) {
	if err := r.fs.ShellRemove(h.Path); err == nil {
		if _, statErr := r.fs.Stat(h.Path); errors.Is(statErr, fs.ErrNotExist) {
			logger.Info("working file removed by shell fallback")
			r.deleted(h, logger)
			return
		}
	} else {
		logger.Debug("shell delete failed", zap.Error(err))
	}

	dir, base := filepath.Split(h.Path)
	if !policy.AllowRename || isCleanupMarker(base) {
		r.metrics.observeReclaim("abandoned")
		logger.Warn("leaving working file for a later sweep", zap.Error(lastErr))
		return
	}

	marker := filepath.Join(dir, fmt.Sprintf("%s%d_%s", CleanupLaterPrefix, r.clock.Now().UnixNano(), base))
	if err := r.fs.Rename(h.Path, marker); err != nil {
		r.metrics.observeReclaim("abandoned")
		logger.Error("failed to rename working file for later cleanup",
			zap.String("marker", marker),
			zap.NamedError("remove_error", lastErr),
			zap.Error(err))
		return
	}

	h.finish(TempRenamedForLaterCleanup, marker)
	r.metrics.observeReclaim("renamed")
	logger.Warn("renamed working file for later cleanup",
		zap.String("marker", marker),
		zap.Int("attempts", h.Attempts()),
		zap.Error(lastErr))
}

func (r *Reclaimer) deleted(h *TempFileHandle, logger *zap.Logger) {
	h.finish(TempDeleted, "")
	r.metrics.observeReclaim("deleted")
	logger.Debug("working file reclaimed", zap.Int("attempts", h.Attempts()))
}

// SweepReport summarizes one orphan sweep.
type SweepReport struct {
	Scanned  int `json:"scanned"`
	Orphans  int `json:"orphans"`
	Deleted  int `json:"deleted"`
	Renamed  int `json:"renamed"`
	Leftover int `json:"leftover"`
}

// SweepOrphans reclaims working files and cleanup markers older than the
// orphan age (OrphanAge unless configured), left behind by earlier runs that
// died before their reclaim ran. It uses fewer attempts than the request path
// to keep startup fast.
func (r *Reclaimer) SweepOrphans(dir string) (*SweepReport, error) {
	report := &SweepReport{}

	entries, err := r.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return nil, fmt.Errorf("failed to list working directory: %w", err)
	}

	now := r.clock.Now()
	var orphans []*TempFileHandle
	for _, entry := range entries {
		if entry.IsDir() || !isWorkingFileName(entry.Name()) {
			continue
		}
		report.Scanned++

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < r.orphanAge {
			continue
		}
		orphans = append(orphans, NewTempFileHandle(filepath.Join(dir, entry.Name()), info.ModTime()))
	}
	report.Orphans = len(orphans)

	for _, h := range orphans {
		r.reclaimOne(h, sweepReclaimPolicy)
		switch h.State() {
		case TempDeleted:
			report.Deleted++
		case TempRenamedForLaterCleanup:
			report.Renamed++
		default:
			report.Leftover++
		}
	}

	r.metrics.observeSweep(report)
	if report.Orphans > 0 {
		r.logger.Info("orphan sweep finished",
			zap.String("dir", dir),
			zap.Int("orphans", report.Orphans),
			zap.Int("deleted", report.Deleted),
			zap.Int("renamed", report.Renamed),
			zap.Int("leftover", report.Leftover))
	}

	return report, nil
}
