package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solaceapp/solace/internal/remote"
	"github.com/solaceapp/solace/internal/session"
)

type mockUploader struct {
	calls   atomic.Int32
	release chan struct{} // when non-nil, Upload blocks until closed
	result  remote.UploadResult
	err     error
}

func (m *mockUploader) Upload(ctx context.Context, filename string, content io.Reader) (remote.UploadResult, error) {
	m.calls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return remote.UploadResult{}, ctx.Err()
		}
	}
	return m.result, m.err
}

type mockCommitter struct {
	mu        sync.Mutex
	committed []session.Session
	err       error
}

func (m *mockCommitter) Commit(s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.committed = append(m.committed, s)
	return nil
}

func (m *mockCommitter) all() []session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Session(nil), m.committed...)
}

func testTimings() Timings {
	return Timings{
		PhaseOffsets:     []time.Duration{0, 1 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond},
		ProgressTick:     time.Millisecond,
		ProgressDuration: 10 * time.Millisecond,
	}
}

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "_chat.txt")
	if err := os.WriteFile(path, []byte("1/2/24, 9:15 AM - Nadia: drink water beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestSuccessfulIngestion(t *testing.T) {
	up := &mockUploader{result: remote.UploadResult{
		SessionID: "s1", PersonName: "Nadia", MemoryCount: 120, Message: "indexed",
	}}
	com := &mockCommitter{}
	o := NewOrchestrator(up, com, testTimings())

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, o)

	snap := o.Snapshot()
	if snap.Status != StatusSucceeded {
		t.Errorf("Status = %v, want succeeded", snap.Status)
	}
	if snap.Progress != 100 {
		t.Errorf("Progress = %d, want 100", snap.Progress)
	}
	if snap.Phase != len(Phases)-1 {
		t.Errorf("Phase = %d, want %d", snap.Phase, len(Phases)-1)
	}

	want := session.Session{SessionID: "s1", PersonName: "Nadia", MemoryCount: 120, Message: "indexed"}
	got := com.all()
	if len(got) != 1 || got[0] != want {
		t.Errorf("committed = %+v, want exactly [%+v]", got, want)
	}
}

func TestAtMostOneInFlight(t *testing.T) {
	up := &mockUploader{release: make(chan struct{})}
	o := NewOrchestrator(up, &mockCommitter{}, testTimings())
	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Second and third invocations while running must not start uploads.
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("third Start: %v", err)
	}

	close(up.release)
	waitDone(t, o)

	if n := up.calls.Load(); n != 1 {
		t.Errorf("upload called %d times, want 1", n)
	}
}

func TestProgressIsMonotoneAndCapped(t *testing.T) {
	up := &mockUploader{release: make(chan struct{})}
	o := NewOrchestrator(up, &mockCommitter{}, testTimings())

	var mu sync.Mutex
	var seen []int
	o.OnUpdate = func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
	}

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Let the simulated counter run to its cap before the real response.
	deadline := time.Now().Add(2 * time.Second)
	for o.Snapshot().Progress < progressCap && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := o.Snapshot().Progress; got != progressCap {
		t.Fatalf("simulated progress = %d, want cap %d", got, progressCap)
	}

	close(up.release)
	waitDone(t, o)

	mu.Lock()
	defer mu.Unlock()
	prev := 0
	for _, p := range seen {
		if p < prev {
			t.Fatalf("progress decreased: %v", seen)
		}
		if p > 100 {
			t.Fatalf("progress exceeded 100: %v", seen)
		}
		prev = p
	}
	if seen[len(seen)-1] != 100 {
		t.Errorf("final progress = %d, want 100", seen[len(seen)-1])
	}
}

func TestFailureUsesDetailMessage(t *testing.T) {
	up := &mockUploader{err: &remote.APIError{Status: 400, Detail: "No messages found. Check the file format."}}
	com := &mockCommitter{}
	o := NewOrchestrator(up, com, testTimings())

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, o)

	snap := o.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("Status = %v, want failed", snap.Status)
	}
	if snap.Err != "No messages found. Check the file format." {
		t.Errorf("Err = %q", snap.Err)
	}
	if len(com.all()) != 0 {
		t.Error("failed ingestion must not commit a session")
	}
}

func TestFailureFallsBackToGenericMessage(t *testing.T) {
	up := &mockUploader{err: errors.New("connection reset")}
	o := NewOrchestrator(up, &mockCommitter{}, testTimings())

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, o)

	if snap := o.Snapshot(); snap.Err != genericUploadError {
		t.Errorf("Err = %q, want generic message", snap.Err)
	}
}

func TestSelectFileValidation(t *testing.T) {
	o := NewOrchestrator(&mockUploader{}, &mockCommitter{}, testTimings())

	if err := o.SelectFile("a.txt", "b.txt"); err == nil {
		t.Error("two files should be rejected")
	}
	if err := o.SelectFile("export.pdf"); err == nil {
		t.Error("non-txt extension should be rejected")
	}
	if o.Snapshot().Err == "" {
		t.Error("validation failure should surface an error state")
	}

	// A valid selection clears the prior error.
	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if snap := o.Snapshot(); snap.Err != "" || snap.File == "" {
		t.Errorf("snapshot after valid select = %+v", snap)
	}
}

func TestStartWithoutFile(t *testing.T) {
	o := NewOrchestrator(&mockUploader{}, &mockCommitter{}, testTimings())
	if err := o.Start(context.Background()); err == nil {
		t.Fatal("Start without a selected file should fail")
	}
}

func TestCancelAbandonsJob(t *testing.T) {
	up := &mockUploader{release: make(chan struct{}), result: remote.UploadResult{SessionID: "s1", PersonName: "N"}}
	com := &mockCommitter{}
	o := NewOrchestrator(up, com, testTimings())

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	o.Cancel()
	close(up.release)
	waitDone(t, o)

	snap := o.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("Status = %v, want idle after cancel", snap.Status)
	}
	if snap.Progress != 0 || snap.Phase != 0 {
		t.Errorf("cancelled job left progress/phase: %+v", snap)
	}
	if len(com.all()) != 0 {
		t.Error("cancelled job must not commit a session")
	}
}

func TestResetClearsTerminalState(t *testing.T) {
	up := &mockUploader{err: errors.New("boom")}
	o := NewOrchestrator(up, &mockCommitter{}, testTimings())

	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, o)

	o.Reset()
	snap := o.Snapshot()
	if snap.Status != StatusIdle || snap.File != "" || snap.Err != "" || snap.Progress != 0 {
		t.Errorf("snapshot after Reset = %+v", snap)
	}

	// The user may retry by reselecting a file.
	up.err = nil
	up.result = remote.UploadResult{SessionID: "s2", PersonName: "Nadia", MemoryCount: 3}
	if err := o.SelectFile(writeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, o)
	if got := o.Snapshot().Status; got != StatusSucceeded {
		t.Errorf("retry Status = %v, want succeeded", got)
	}
}
