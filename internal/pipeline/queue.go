package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/lukudoko/videothing/internal/media"
	"github.com/lukudoko/videothing/internal/transcribe"
)

// Fetcher downloads the job key's source into destDir and returns the path
// of the downloaded file.
type Fetcher interface {
	Fetch(url, destDir string, onProgress func(percentage float64, speed, eta string)) (string, error)
}

// Converter converts dir/filename into the target format.
type Converter interface {
	Convert(dir, filename string, onProgress func(percentage float64)) media.Result
}

// Transcriber produces a subtitle artifact for the file at path.
type Transcriber interface {
	Transcribe(path string, onProgress func(percentage float64)) transcribe.Result
}

// Options sizes the worker pools and sets the initial transcription toggle.
// The download pool is always a single worker: one upstream source should
// not be hit with parallel connections, and bandwidth is shared anyway.
type Options struct {
	ConvertWorkers    int
	TranscribeWorkers int
	Transcription     bool
}

// Queue owns the progress tracker and the three stage pools, admitting jobs
// by key and chaining each stage's completion to the next stage's pool.
type Queue struct {
	tracker *Tracker

	downloadPool   *Pool
	convertPool    *Pool
	transcribePool *Pool

	fetcher     Fetcher
	converter   Converter
	transcriber Transcriber

	mu            sync.Mutex
	transcription bool
	closed        bool
}

// NewQueue creates a queue with its pools already running.
func NewQueue(fetcher Fetcher, converter Converter, transcriber Transcriber, opts Options) *Queue {
	return &Queue{
		tracker:        NewTracker(),
		downloadPool:   NewPool(1),
		convertPool:    NewPool(opts.ConvertWorkers),
		transcribePool: NewPool(opts.TranscribeWorkers),
		fetcher:        fetcher,
		converter:      converter,
		transcriber:    transcriber,
		transcription:  opts.Transcription,
	}
}

// Submit admits a download job for url into destDir. It returns false, not
// an error, when the key already has an active job or the queue is shut
// down; rejection is a normal outcome, not a fault.
func (q *Queue) Submit(url, destDir string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	if !q.tracker.Admit(url, WithMessage("Download queued.")) {
		slog.Info("Submission rejected, job already active", "key", url)
		return false
	}

	if !q.downloadPool.Submit(func() { q.downloadTask(url, destDir) }) {
		// Shutdown raced the admission; release the key.
		q.tracker.Set(url, WithStatus(StatusFailed), WithError("pipeline shut down before the job could start"))
		return false
	}
	slog.Info("Download job queued", "key", url, "dir", destDir)
	return true
}

// SubmitTranscription admits a transcription-only job for an existing file.
// The file path doubles as the job key.
func (q *Queue) SubmitTranscription(path, displayName string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	if !q.tracker.Admit(path,
		WithMessage("Transcription queued."),
		WithOutputPath(path),
		WithFilename(displayName),
	) {
		slog.Info("Transcription rejected, job already active", "key", path)
		return false
	}

	if !q.transcribePool.Submit(func() { q.transcribeTask(path, path) }) {
		q.tracker.Set(path, WithStatus(StatusFailed), WithError("pipeline shut down before the job could start"))
		return false
	}
	slog.Info("Transcription job queued", "key", path)
	return true
}

// Progress returns the record for key, if any.
func (q *Queue) Progress(key string) (Record, bool) {
	return q.tracker.Get(key)
}

// AllProgress returns a snapshot of every record.
func (q *Queue) AllProgress() map[string]Record {
	return q.tracker.Snapshot()
}

// Active reports whether key currently has a non-terminal job.
func (q *Queue) Active(key string) bool {
	return q.tracker.Active(key)
}

// ClearFinished removes all terminal records and returns the count.
func (q *Queue) ClearFinished() int {
	removed := q.tracker.RemoveFinished()
	slog.Info("Cleared finished jobs", "count", removed)
	return removed
}

// SetTranscriptionEnabled flips whether converted jobs continue into the
// transcription stage. Jobs already past that decision point keep the
// decision they were admitted under.
func (q *Queue) SetTranscriptionEnabled(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transcription = enabled
}

// TranscriptionEnabled returns the current toggle value.
func (q *Queue) TranscriptionEnabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.transcription
}

// Shutdown stops accepting submissions and drains the pools in stage order,
// so work a draining stage hands off downstream still runs. In-flight
// adapter calls are never interrupted.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.downloadPool.Close()
	q.convertPool.Close()
	q.transcribePool.Close()
	slog.Info("Pipeline drained")
}

// downloadTask is the fetch-stage body. On success it hands the file to the
// convert pool and returns, freeing the download slot immediately.
func (q *Queue) downloadTask(key, destDir string) {
	defer q.recoverTask(key, "download")

	q.tracker.Set(key,
		WithStatus(StatusDownloading),
		WithPercent(0),
		WithMessage("Downloading..."),
	)

	path, err := q.fetcher.Fetch(key, destDir, func(percentage float64, speed, eta string) {
		q.tracker.Set(key,
			WithStatus(StatusDownloading),
			WithPercent(percentage),
			WithSpeed(speed),
			WithETA(eta),
		)
	})
	if err != nil {
		msg := fmt.Sprintf("download failed for %s: %v", key, err)
		slog.Error("Download failed", "key", key, "error", err)
		q.tracker.Set(key, WithStatus(StatusFailed), WithError(msg), WithMessage(msg))
		return
	}

	q.tracker.Set(key,
		WithStatus(StatusCompleted),
		WithOutputPath(path),
		WithFilename(filepath.Base(path)),
		WithMessage("Download completed. Queueing for conversion..."),
	)
	slog.Info("Download completed", "key", key, "path", path)

	if !q.convertPool.Submit(func() { q.convertTask(key, path) }) {
		slog.Warn("Convert pool closed, job stops at download", "key", key)
	}
}

// convertTask is the convert-stage body. The transcription toggle is read
// exactly once here, at the convert-to-next decision point.
func (q *Queue) convertTask(key, downloadedPath string) {
	defer q.recoverTask(key, "conversion")

	q.tracker.Set(key,
		WithStatus(StatusConverting),
		WithPercent(0),
		WithMessage("Starting conversion..."),
	)

	dir, filename := filepath.Split(downloadedPath)
	result := q.converter.Convert(dir, filename, func(percentage float64) {
		q.tracker.Set(key,
			WithStatus(StatusConverting),
			WithPercent(percentage),
			WithMessage(fmt.Sprintf("Converting: %.2f%%", percentage)),
		)
	})

	transcription := q.TranscriptionEnabled()

	switch result.Status {
	case media.StatusSuccess:
		slog.Info("Conversion completed", "key", key, "output", result.OutputFile)
		if transcription {
			q.enqueueTranscription(key, result.OutputFile)
			return
		}
		q.tracker.Set(key,
			WithStatus(StatusFinalized),
			WithOutputPath(result.OutputFile),
			WithMessage(result.Message),
		)

	case media.StatusSkipped:
		slog.Info("Conversion skipped", "key", key, "reason", result.Message)
		if transcription {
			q.enqueueTranscription(key, downloadedPath)
			return
		}
		q.tracker.Set(key,
			WithStatus(StatusSkipped),
			WithOutputPath(downloadedPath),
			WithMessage(result.Message),
		)

	default:
		slog.Error("Conversion failed", "key", key, "error", result.Err)
		q.tracker.Set(key,
			WithStatus(StatusFailed),
			WithError(result.Message),
			WithMessage(result.Message),
		)
	}
}

func (q *Queue) enqueueTranscription(key, path string) {
	q.tracker.Set(key,
		WithStatus(StatusTranscribing),
		WithPercent(0),
		WithOutputPath(path),
		WithMessage("Queued for transcription..."),
	)
	if !q.transcribePool.Submit(func() { q.transcribeTask(key, path) }) {
		slog.Warn("Transcribe pool closed, job stops after conversion", "key", key)
	}
}

// transcribeTask is the transcribe-stage body.
func (q *Queue) transcribeTask(key, path string) {
	defer q.recoverTask(key, "transcription")

	q.tracker.Set(key,
		WithStatus(StatusTranscribing),
		WithPercent(0),
		WithMessage("Transcribing..."),
	)

	result := q.transcriber.Transcribe(path, func(percentage float64) {
		q.tracker.Set(key,
			WithStatus(StatusTranscribing),
			WithPercent(percentage),
			WithMessage(fmt.Sprintf("Transcribing: %.1f%%", percentage)),
		)
	})
	if result.Err != nil {
		slog.Error("Transcription failed", "key", key, "error", result.Err)
		q.tracker.Set(key,
			WithStatus(StatusFailed),
			WithError(result.Message),
			WithMessage(result.Message),
		)
		return
	}

	fields := []Field{
		WithStatus(StatusFinalized),
		WithMessage(result.Message),
	}
	if result.ArtifactPath != "" {
		fields = append(fields, WithOutputPath(result.ArtifactPath))
	}
	q.tracker.Set(key, fields...)
	slog.Info("Transcription finished", "key", key, "artifact", result.ArtifactPath)
}

// recoverTask converts a panicking stage body into a failed record instead
// of letting it kill the pool worker. A stage panic is a pipeline bug, so
// the message is prefixed to distinguish it from adapter-reported failures.
func (q *Queue) recoverTask(key, stage string) {
	if r := recover(); r != nil {
		msg := fmt.Sprintf("internal pipeline error during %s: %v", stage, r)
		slog.Error("Stage panicked", "key", key, "stage", stage, "panic", r)
		q.tracker.Set(key, WithStatus(StatusFailed), WithError(msg), WithMessage(msg))
	}
}
