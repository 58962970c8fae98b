// Package pipeline contains the job orchestration core: the progress
// tracker shared by every stage, the bounded worker pools, and the queue
// that chains download, conversion and transcription work per job key.
package pipeline

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a single job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusCompleted    Status = "completed"
	StatusConverting   Status = "converting"
	StatusTranscribing Status = "transcribing"
	StatusFinalized    Status = "finalized"
	StatusSkipped      Status = "skipped"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further stage will run for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinalized, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// Active reports whether a job in this status blocks re-submission of its key.
func (s Status) Active() bool {
	return s != "" && !s.Terminal()
}

// Record holds the externally visible progress of one job. The JSON field
// names match what the frontend already consumes.
type Record struct {
	Status        Status    `json:"status"`
	Percentage    float64   `json:"progress_percentage"`
	DownloadSpeed string    `json:"download_speed,omitempty"`
	ETA           string    `json:"eta,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	Message       string    `json:"message,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Field is a partial update applied to a record inside the tracker's
// critical section. Callers only set the fields their stage cares about.
type Field func(*Record)

func WithStatus(s Status) Field { return func(r *Record) { r.Status = s } }

func WithPercent(p float64) Field { return func(r *Record) { r.Percentage = p } }

func WithSpeed(speed string) Field { return func(r *Record) { r.DownloadSpeed = speed } }

func WithETA(eta string) Field { return func(r *Record) { r.ETA = eta } }

func WithError(msg string) Field { return func(r *Record) { r.ErrorMessage = msg } }

func WithOutputPath(p string) Field { return func(r *Record) { r.OutputPath = p } }

func WithMessage(msg string) Field { return func(r *Record) { r.Message = msg } }

func WithFilename(name string) Field { return func(r *Record) { r.Filename = name } }

const genericFailureMessage = "job failed"

// Tracker is the single source of truth for job state. One mutex guards the
// whole map; it is never held across an adapter call.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		now:     time.Now,
		records: make(map[string]*Record),
	}
}

// Get returns a copy of the record for key.
func (t *Tracker) Get(key string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every record keyed by job key.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Record, len(t.records))
	for key, rec := range t.records {
		out[key] = *rec
	}
	return out
}

// Set merges the given fields into the record for key, creating a fresh
// queued record if none exists, and normalizes the result so the record is
// self-consistent no matter which fields the caller chose to set.
func (t *Tracker) Set(key string, fields ...Field) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply(key, fields)
}

// Active reports whether a non-terminal record exists for key.
func (t *Tracker) Active(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	return ok && rec.Status.Active()
}

// Admit atomically checks for an active record under key and, if there is
// none, creates a fresh queued record. It returns false when the key is
// already being worked on; terminal records are overwritten.
func (t *Tracker) Admit(key string, fields ...Field) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[key]; ok && rec.Status.Active() {
		return false
	}
	t.records[key] = &Record{}
	t.apply(key, append([]Field{WithStatus(StatusQueued)}, fields...))
	return true
}

// RemoveFinished deletes every terminal record and returns the count removed.
// Active jobs are untouched.
func (t *Tracker) RemoveFinished() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, rec := range t.records {
		if rec.Status.Terminal() {
			delete(t.records, key)
			removed++
		}
	}
	return removed
}

// apply must be called with t.mu held.
func (t *Tracker) apply(key string, fields []Field) {
	rec, ok := t.records[key]
	if !ok {
		rec = &Record{Status: StatusQueued}
		t.records[key] = rec
	}
	for _, field := range fields {
		field(rec)
	}
	normalize(rec, t.now())
}

// normalize enforces the cross-field consistency rules after a merge, in a
// fixed order so callers never have to set fields outside their stage.
func normalize(rec *Record, now time.Time) {
	if rec.Status != StatusDownloading {
		rec.DownloadSpeed = ""
		rec.ETA = ""
	}
	if rec.Status == StatusFailed {
		rec.Percentage = 0
		if rec.ErrorMessage == "" {
			rec.ErrorMessage = genericFailureMessage
		}
	} else {
		rec.ErrorMessage = ""
	}
	switch rec.Status {
	case StatusCompleted, StatusFinalized, StatusSkipped:
		rec.Percentage = 100
	case StatusQueued:
		rec.Percentage = 0
		rec.OutputPath = ""
	}
	rec.Timestamp = now
}
