// Package ingest drives the upload-and-index workflow: a cosmetic phase
// timeline and a simulated progress counter run alongside the real upload
// request, and the real response always wins on arrival.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solaceapp/solace/internal/remote"
	"github.com/solaceapp/solace/internal/session"
)

// Uploader performs the real ingestion request.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (remote.UploadResult, error)
}

// SessionCommitter receives the session derived from a successful upload.
type SessionCommitter interface {
	Commit(session.Session) error
}

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phases are the display labels shown during ingestion. They are cosmetic
// and not coupled to real backend progress.
var Phases = []string{
	"Reading file…",
	"Parsing messages…",
	"Building style profile…",
	"Generating embeddings…",
	"Storing in memory index…",
	"Ready!",
}

// Timings controls the simulated timelines. Tests compress these.
type Timings struct {
	// PhaseOffsets are cumulative wall-clock offsets, one per phase.
	PhaseOffsets []time.Duration
	// ProgressTick is the simulated counter's tick interval.
	ProgressTick time.Duration
	// ProgressDuration is how long the counter takes to reach its cap.
	ProgressDuration time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PhaseOffsets: []time.Duration{
			0,
			300 * time.Millisecond,
			700 * time.Millisecond,
			1300 * time.Millisecond,
			2500 * time.Millisecond,
			3300 * time.Millisecond,
		},
		ProgressTick:     80 * time.Millisecond,
		ProgressDuration: 3200 * time.Millisecond,
	}
}

// The simulated counter stops here so it never implies completion before
// the real request resolves.
const progressCap = 90

const genericUploadError = "Upload failed. Check your file and try again."

// Snapshot is an immutable view of the orchestrator for display.
type Snapshot struct {
	Status   Status
	File     string
	Phase    int
	Progress int
	Err      string
	Result   *remote.UploadResult
}

// Orchestrator owns one ingestion job at a time.
type Orchestrator struct {
	uploader Uploader
	sessions SessionCommitter
	timings  Timings

	// OnUpdate, when set before Start, is invoked after every visible
	// state change, in order. It runs on the job's goroutines and must
	// not call back into the Orchestrator.
	OnUpdate func(Snapshot)

	mu       sync.Mutex
	gen      int
	file     string
	status   Status
	phase    int
	progress int
	errMsg   string
	result   *remote.UploadResult
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewOrchestrator(uploader Uploader, sessions SessionCommitter, timings Timings) *Orchestrator {
	if len(timings.PhaseOffsets) == 0 {
		timings = DefaultTimings()
	}
	return &Orchestrator{
		uploader: uploader,
		sessions: sessions,
		timings:  timings,
		status:   StatusIdle,
	}
}

// SelectFile accepts exactly one plain-text chat export. Any other
// selection surfaces a validation error and leaves the job idle. A prior
// error is cleared on a valid selection.
func (o *Orchestrator) SelectFile(paths ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == StatusRunning {
		return nil
	}

	var err error
	switch {
	case len(paths) != 1:
		err = fmt.Errorf("select a single chat export file")
	case !strings.EqualFold(filepath.Ext(paths[0]), ".txt"):
		err = fmt.Errorf("%s: expected a plain-text WhatsApp export (.txt)", filepath.Base(paths[0]))
	}
	if err != nil {
		o.errMsg = err.Error()
		o.notifyLocked()
		return err
	}

	o.file = paths[0]
	o.errMsg = ""
	o.status = StatusIdle
	o.notifyLocked()
	return nil
}

// Start begins the ingestion job. Invoking it while a job is running is a
// no-op: at most one ingestion runs at a time.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.status == StatusRunning {
		o.mu.Unlock()
		return nil
	}
	if o.file == "" {
		o.mu.Unlock()
		return fmt.Errorf("no file selected")
	}

	o.gen++
	gen := o.gen
	o.status = StatusRunning
	o.phase = 0
	o.progress = 0
	o.errMsg = ""
	o.result = nil

	jobCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	done := make(chan struct{})
	o.done = done
	file := o.file
	o.notifyLocked()
	o.mu.Unlock()

	go o.run(jobCtx, cancel, gen, file, done)
	return nil
}

// Cancel abandons the running job, if any, and returns to idle. Pending
// timers are cancelled; none may mutate state afterwards.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusRunning {
		return
	}
	o.cancel()
	o.gen++ // orphan the job's late callbacks
	o.status = StatusIdle
	o.phase = 0
	o.progress = 0
	o.notifyLocked()
}

// Reset returns to idle, clearing file, progress, and error state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == StatusRunning {
		o.cancel()
		o.gen++
	}
	o.file = ""
	o.status = StatusIdle
	o.phase = 0
	o.progress = 0
	o.errMsg = ""
	o.result = nil
	o.notifyLocked()
}

// Snapshot returns the current display state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Done reports completion of the most recently started job. It returns a
// closed channel when no job has run.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return o.done
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, gen int, path string, done chan struct{}) {
	defer close(done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.phaseLoop(gctx, gen)
		return nil
	})
	g.Go(func() error {
		o.progressLoop(gctx, gen)
		return nil
	})

	result, err := o.doUpload(ctx, path)

	// The real response is authoritative: stop the simulated timelines
	// explicitly, then wait so no late tick can fire past this point.
	cancel()
	g.Wait()

	o.finish(gen, result, err)
}

func (o *Orchestrator) doUpload(ctx context.Context, path string) (remote.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()
	return o.uploader.Upload(ctx, filepath.Base(path), f)
}

func (o *Orchestrator) phaseLoop(ctx context.Context, gen int) {
	start := time.Now()
	for i, offset := range o.timings.PhaseOffsets {
		wait := offset - time.Since(start)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		o.setPhase(gen, i)
	}
}

func (o *Orchestrator) progressLoop(ctx context.Context, gen int) {
	ticks := int(o.timings.ProgressDuration / o.timings.ProgressTick)
	if ticks < 1 {
		ticks = 1
	}
	step := float64(progressCap) / float64(ticks)

	ticker := time.NewTicker(o.timings.ProgressTick)
	defer ticker.Stop()

	cur := 0.0
	for cur < progressCap {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur = min(cur+step, progressCap)
			o.setProgress(gen, int(cur+0.5))
		}
	}
}

func (o *Orchestrator) setPhase(gen, phase int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen || o.status != StatusRunning {
		return
	}
	if phase > o.phase {
		o.phase = phase
		o.notifyLocked()
	}
}

func (o *Orchestrator) setProgress(gen, progress int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen || o.status != StatusRunning {
		return
	}
	// Displayed progress never decreases and never exceeds 100.
	if progress > o.progress {
		o.progress = min(progress, 100)
		o.notifyLocked()
	}
}

func (o *Orchestrator) finish(gen int, result remote.UploadResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen || o.status != StatusRunning {
		return // job was cancelled or reset while in flight
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.status = StatusIdle
			o.notifyLocked()
			return
		}
		o.status = StatusFailed
		o.errMsg = genericUploadError
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			o.errMsg = apiErr.Detail
		}
		slog.Warn("ingestion failed", "file", o.file, "error", err)
		o.notifyLocked()
		return
	}

	o.status = StatusSucceeded
	o.progress = 100
	o.phase = len(Phases) - 1
	o.result = &result

	if commitErr := o.sessions.Commit(session.Session{
		SessionID:   result.SessionID,
		PersonName:  result.PersonName,
		MemoryCount: result.MemoryCount,
		Message:     result.Message,
	}); commitErr != nil {
		slog.Error("committing session", "error", commitErr)
		o.status = StatusFailed
		o.errMsg = "Could not save the session locally."
	}
	o.notifyLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:   o.status,
		File:     o.file,
		Phase:    o.phase,
		Progress: o.progress,
		Err:      o.errMsg,
	}
	if o.result != nil {
		r := *o.result
		snap.Result = &r
	}
	return snap
}

func (o *Orchestrator) notifyLocked() {
	if o.OnUpdate == nil {
		return
	}
	o.OnUpdate(o.snapshotLocked())
}
