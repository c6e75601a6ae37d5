package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockStream feeds fixed chunks and counts Stop calls.
type mockStream struct {
	chunks    [][]byte
	pos       int
	stopped   chan struct{}
	stopCount atomic.Int32
}

func newMockStream(chunks ...[]byte) *mockStream {
	return &mockStream{chunks: chunks, stopped: make(chan struct{})}
}

func (m *mockStream) Read(ctx context.Context) ([]byte, error) {
	if m.pos < len(m.chunks) {
		c := m.chunks[m.pos]
		m.pos++
		return c, nil
	}
	// Block like real hardware until stopped or cancelled.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopped:
		return nil, io.EOF
	}
}

func (m *mockStream) Stop() error {
	if m.stopCount.Add(1) == 1 {
		close(m.stopped)
	}
	return nil
}

type mockDevice struct {
	stream  *mockStream
	openErr error
	opens   atomic.Int32
}

func (m *mockDevice) Open(ctx context.Context) (Stream, error) {
	m.opens.Add(1)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

type mockTranscriber struct {
	text  string
	err   error
	calls atomic.Int32
	got   []byte
}

func (m *mockTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	m.calls.Add(1)
	m.got = pcm
	return m.text, m.err
}

func pcmChunk(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

var ctx = context.Background()

func TestStartStopDeliversUtterance(t *testing.T) {
	stream := newMockStream(pcmChunk(100, -100, 200, -200))
	dev := &mockDevice{stream: stream}
	tr := &mockTranscriber{text: "I miss you so much today"}

	var sunk []string
	p := NewPipeline(dev, tr, 4)
	p.OnText = func(s string) { sunk = append(sunk, s) }

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Recording() {
		t.Fatal("Recording should be true after Start")
	}

	text, err := p.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if text != "I miss you so much today" {
		t.Errorf("Stop = %q", text)
	}
	if p.Recording() {
		t.Error("Recording should be false after Stop")
	}
	if len(sunk) != 1 || sunk[0] != text {
		t.Errorf("text sink got %v", sunk)
	}
	if len(tr.got) != 8 {
		t.Errorf("transcriber got %d bytes, want the full 8-byte capture", len(tr.got))
	}
}

func TestStopReleasesHandlesExactlyOnce(t *testing.T) {
	stream := newMockStream(pcmChunk(1, 2, 3, 4))
	dev := &mockDevice{stream: stream}
	p := NewPipeline(dev, &mockTranscriber{}, 4)

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	if n := stream.stopCount.Load(); n != 1 {
		t.Errorf("stream stopped %d times, want exactly 1", n)
	}

	// Stop when idle is a no-op: no further releases, no transcription.
	tr := &mockTranscriber{}
	p.trans = tr
	if text, err := p.Stop(ctx); err != nil || text != "" {
		t.Errorf("idle Stop = %q, %v", text, err)
	}
	if n := stream.stopCount.Load(); n != 1 {
		t.Errorf("idle Stop released handles again: %d", n)
	}
	if tr.calls.Load() != 0 {
		t.Error("idle Stop must not transcribe")
	}
}

func TestNoFrameAfterStop(t *testing.T) {
	stream := newMockStream(pcmChunk(1000, -1000, 1000, -1000, 1000, -1000, 1000, -1000))
	dev := &mockDevice{stream: stream}
	p := NewPipeline(dev, &mockTranscriber{}, 4)
	p.frameInterval = time.Millisecond

	var mu sync.Mutex
	frames := 0
	stopped := false
	p.OnFrame = func(Frame) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			t.Error("frame delivered after Stop returned")
		}
		frames++
	}

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Let a few frames through.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := frames
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	stopped = true
	n := frames
	mu.Unlock()
	if n == 0 {
		t.Error("no visualization frames delivered while recording")
	}

	time.Sleep(20 * time.Millisecond) // any leaked loop would fire here
}

func TestPermissionDeniedStaysIdle(t *testing.T) {
	dev := &mockDevice{openErr: errors.New("permission denied")}
	p := NewPipeline(dev, &mockTranscriber{}, 4)

	if err := p.Start(ctx); err == nil {
		t.Fatal("expected error on denied device")
	}
	if p.Recording() {
		t.Error("pipeline must stay idle after denial")
	}

	// A later Start may retry.
	dev.openErr = nil
	dev.stream = newMockStream(pcmChunk(1, 2))
	if err := p.Start(ctx); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	p.Stop(ctx)
}

func TestOverlappingStartRejected(t *testing.T) {
	dev := &mockDevice{stream: newMockStream(pcmChunk(1, 2))}
	p := NewPipeline(dev, &mockTranscriber{}, 4)

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); !errors.Is(err, ErrRecording) {
		t.Errorf("second Start = %v, want ErrRecording", err)
	}
	if n := dev.opens.Load(); n != 1 {
		t.Errorf("device opened %d times, want 1", n)
	}
	p.Stop(ctx)
}

func TestTranscriptionFailureIsSilent(t *testing.T) {
	dev := &mockDevice{stream: newMockStream(pcmChunk(5, 6, 7, 8))}
	tr := &mockTranscriber{err: errors.New("model not loaded")}
	p := NewPipeline(dev, tr, 4)

	var sunk []string
	p.OnText = func(s string) { sunk = append(sunk, s) }

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	text, err := p.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop must not surface transcription errors, got %v", err)
	}
	if text != "" {
		t.Errorf("Stop = %q, want empty utterance", text)
	}
	if len(sunk) != 1 || sunk[0] != "" {
		t.Errorf("text sink got %v, want one empty delivery", sunk)
	}
}

func TestSpectrumShape(t *testing.T) {
	// A constant (DC) signal has energy only in bin 0.
	samples := make([]int16, 64)
	for i := range samples {
		samples[i] = 16384
	}
	bins := spectrum(pcmChunk(samples...), 32)

	if len(bins) != 32 {
		t.Fatalf("len(bins) = %d, want 32", len(bins))
	}
	if bins[0] < 0.9 {
		t.Errorf("DC bin = %f, want ~1", bins[0])
	}
	for i, b := range bins[1:] {
		if b > 0.05 {
			t.Errorf("bin %d = %f, want ~0 for DC input", i+1, b)
		}
	}
}

func TestSpectrumShortInputIsZero(t *testing.T) {
	bins := spectrum(pcmChunk(1, 2, 3), 32)
	for i, b := range bins {
		if b != 0 {
			t.Errorf("bin %d = %f, want 0 for underfull window", i, b)
		}
	}
}

func TestSpectrumTone(t *testing.T) {
	// A pure tone at bin 4's frequency concentrates energy there.
	n := 64
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(24000 * math.Sin(2*math.Pi*4*float64(i)/float64(n)))
	}
	bins := spectrum(pcmChunk(samples...), 32)

	for i, b := range bins {
		if i == 4 {
			if b < 0.5 {
				t.Errorf("tone bin = %f, want strong response", b)
			}
		} else if b > 0.1 {
			t.Errorf("bin %d = %f, want near zero", i, b)
		}
	}
}

func TestHTTPTranscriber(t *testing.T) {
	var gotContentType string
	var gotBody int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = len(body)
		w.Write([]byte(`{"text":"I wish you were here"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, 16000)
	tr.Client = srv.Client()

	text, err := tr.Transcribe(ctx, pcmChunk(1, 2, 3, 4))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "I wish you were here" {
		t.Errorf("text = %q", text)
	}
	if gotContentType != "audio/L16; rate=16000" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody != 8 {
		t.Errorf("body = %d bytes, want 8", gotBody)
	}
}

func TestHTTPTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, 16000)
	tr.Client = srv.Client()

	if _, err := tr.Transcribe(ctx, pcmChunk(1)); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestDemoTranscriber(t *testing.T) {
	text, err := DemoTranscriber{}.Transcribe(ctx, pcmChunk(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, u := range demoUtterances {
		if text == u {
			found = true
		}
	}
	if !found {
		t.Errorf("demo utterance %q not in the canned list", text)
	}

	if text, _ := (DemoTranscriber{}).Transcribe(ctx, nil); text != "" {
		t.Errorf("empty capture should produce empty utterance, got %q", text)
	}
}
