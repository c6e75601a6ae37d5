package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrRecording is returned by Start while a capture is already running;
// the control toggles strictly between idle and recording.
var ErrRecording = errors.New("already recording")

const defaultFrameInterval = 33 * time.Millisecond

// Pipeline drives one capture at a time: it buffers audio chunks, feeds
// a frame sink with spectrum data for the live waveform, and on stop
// resolves the buffer into an utterance delivered to the text sink.
//
// Resource invariant: every Start is matched by exactly one Stop cleanup
// — the stream's track is stopped once and no frame callback fires after
// Stop returns.
type Pipeline struct {
	device        Device
	trans         Transcriber
	bins          int
	frameInterval time.Duration

	// OnFrame receives visualization frames while recording.
	OnFrame func(Frame)
	// OnText receives the utterance produced by Stop. An empty string
	// means transcription failed silently or nothing was captured.
	OnText func(string)

	mu        sync.Mutex
	recording bool
	stream    Stream
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
	captured  []byte
	latest    []byte
}

func NewPipeline(device Device, trans Transcriber, bins int) *Pipeline {
	if bins <= 0 {
		bins = 32
	}
	return &Pipeline{
		device:        device,
		trans:         trans,
		bins:          bins,
		frameInterval: defaultFrameInterval,
	}
}

// Recording reports whether a capture is live.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// Start requests microphone access and begins capturing. On permission
// denial (or any open failure) it reports the error and the pipeline
// stays idle.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return ErrRecording
	}
	// Reserve the slot before opening so two racing Starts cannot both
	// acquire the device.
	p.recording = true
	p.mu.Unlock()

	stream, err := p.device.Open(ctx)
	if err != nil {
		p.mu.Lock()
		p.recording = false
		p.mu.Unlock()
		return fmt.Errorf("microphone access: %w", err)
	}

	capCtx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	p.mu.Lock()
	p.stream = stream
	p.cancel = cancel
	p.wg = wg
	p.captured = nil
	p.latest = nil
	p.mu.Unlock()

	wg.Add(2)
	go p.captureLoop(capCtx, stream, wg)
	go p.frameLoop(capCtx, wg)
	return nil
}

// Stop halts the capture, releases the hardware track, cancels the
// visualization loop, and resolves the buffered audio into text which is
// handed to the text sink. Calling Stop while idle is a no-op.
func (p *Pipeline) Stop(ctx context.Context) (string, error) {
	p.mu.Lock()
	if !p.recording || p.stream == nil {
		// Idle, or a racing Start is still opening the device.
		p.mu.Unlock()
		return "", nil
	}
	p.recording = false
	stream := p.stream
	cancel := p.cancel
	wg := p.wg
	p.stream = nil
	p.cancel = nil
	p.wg = nil
	p.mu.Unlock()

	// Cancel both loops and join them: no frame callback may fire after
	// this point.
	cancel()
	wg.Wait()

	if err := stream.Stop(); err != nil {
		slog.Warn("stopping capture stream", "error", err)
	}

	p.mu.Lock()
	pcm := p.captured
	p.captured = nil
	p.latest = nil
	p.mu.Unlock()

	text, err := p.trans.Transcribe(ctx, pcm)
	if err != nil {
		// Best-effort: transcription failure is silent.
		slog.Warn("transcription failed", "error", err)
		text = ""
	}
	if p.OnText != nil {
		p.OnText(text)
	}
	return text, nil
}

func (p *Pipeline) captureLoop(ctx context.Context, stream Stream, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		chunk, err := stream.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				slog.Warn("reading capture stream", "error", err)
			}
			return
		}
		p.mu.Lock()
		p.captured = append(p.captured, chunk...)
		p.latest = chunk
		p.mu.Unlock()
	}
}

func (p *Pipeline) frameLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(p.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			latest := p.latest
			p.mu.Unlock()
			if p.OnFrame != nil {
				p.OnFrame(Frame{Bins: spectrum(latest, p.bins)})
			}
		}
	}
}
