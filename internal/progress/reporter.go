package progress

import (
	"sync"
	"time"

	"github.com/bstardust/photokit/internal/logger"
)

// Reporter tracks and logs the progress of a batch of files
type Reporter struct {
	mu             sync.Mutex
	operation      string
	total          int
	completed      int
	skipped        int
	errors         int
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration
}

// New creates a new progress reporter
func New() *Reporter {
	return &Reporter{
		updateInterval: 2 * time.Second,
	}
}

// Start initializes the reporter for total files processed by operation
func (r *Reporter) Start(operation string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.operation = operation
	r.total = total
	r.completed = 0
	r.skipped = 0
	r.errors = 0
	r.startTime = time.Now()
	r.lastUpdateTime = time.Now()

	logger.Info("Starting %s of %d files", operation, total)
}

// Complete marks a file as successfully processed
func (r *Reporter) Complete(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	r.updateProgress()
}

// Skip marks a file as not processed
func (r *Reporter) Skip(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipped++
	logger.Debug("Skipped %s", path)
	r.updateProgress()
}

// Error marks a file as failed
func (r *Reporter) Error(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++
	logger.Warn("%s failed for %s: %v", r.operation, path, err)
	r.updateProgress()
}

// Counts returns the completed, skipped and failed totals
func (r *Reporter) Counts() (completed, skipped, errors int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.completed, r.skipped, r.errors
}

// Finish logs the final summary
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := time.Since(r.startTime)

	logger.Info("%s complete: %d/%d files processed, %d skipped, %d errors in %s",
		r.operation, r.completed, r.total, r.skipped, r.errors, duration.Round(time.Millisecond))
}

// updateProgress logs progress at most once per update interval
func (r *Reporter) updateProgress() {
	now := time.Now()
	if now.Sub(r.lastUpdateTime) < r.updateInterval {
		return
	}

	r.lastUpdateTime = now
	duration := now.Sub(r.startTime)
	processed := r.completed + r.skipped + r.errors

	if processed == 0 || r.total == 0 {
		return
	}

	percentage := float64(processed) / float64(r.total) * 100

	var eta string
	if r.completed > 0 {
		timePerFile := duration / time.Duration(processed)
		remaining := timePerFile * time.Duration(r.total-processed)
		eta = remaining.Round(time.Second).String()
	} else {
		eta = "unknown"
	}

	logger.Info("Progress: %.1f%% (%d/%d, %d completed, %d skipped, %d errors) ETA: %s",
		percentage, processed, r.total, r.completed, r.skipped, r.errors, eta)
}
