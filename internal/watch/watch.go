// Package watch monitors an inbox directory and enqueues a stitch job
// once a dropped image sequence stops changing.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"panostitch/internal/fsutil"
	"panostitch/internal/pipeline"
)

// Submitter is the slice of the pipeline the watcher needs.
type Submitter interface {
	Submit(job pipeline.Job) error
}

// Watcher waits for a sequence drop to settle before enqueueing. Frames
// arrive one file at a time, so every relevant event just restarts the
// settle timer.
type Watcher struct {
	inbox     string
	outputDir string
	settle    time.Duration
	pipe      Submitter
	log       *slog.Logger
	newID     func() string

	mu    sync.Mutex
	timer *time.Timer
	seq   int
}

// New creates a watcher for the given inbox directory.
func New(inbox, outputDir string, settle time.Duration, pipe Submitter, newID func() string, log *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = 3 * time.Second
	}
	return &Watcher{
		inbox:     inbox,
		outputDir: outputDir,
		settle:    settle,
		pipe:      pipe,
		log:       log,
		newID:     newID,
	}
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.inbox); err != nil {
		return fmt.Errorf("watching %s: %w", w.inbox, err)
	}
	w.log.Info("watching inbox", "dir", w.inbox, "settle", w.settle)

	for {
		select {
		case <-ctx.Done():
			w.cancelTimer()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !fsutil.IsImageFile(event.Name) {
				continue
			}
			w.log.Debug("inbox changed", "file", event.Name, "op", event.Op.String())
			w.resetTimer()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) resetTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.enqueue)
}

func (w *Watcher) cancelTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// enqueue fires once the inbox has been quiet for the settle window.
func (w *Watcher) enqueue() {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	id := w.newID()
	output := filepath.Join(w.outputDir, fmt.Sprintf("panorama_%03d.jpg", seq))
	job := pipeline.Job{
		ID:        id,
		Type:      pipeline.JobStitch,
		InputPath: w.inbox,
		Output:    output,
	}
	if err := w.pipe.Submit(job); err != nil {
		w.log.Error("enqueueing stitch job failed", "error", err)
		return
	}
	w.log.Info("stitch job enqueued from inbox", "id", id, "output", output)
}
