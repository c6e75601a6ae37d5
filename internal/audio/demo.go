package audio

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// DemoDevice synthesizes microphone input: a wandering tone with noise,
// paced in real time, so the capture flow and the waveform are usable on
// machines without audio hardware wired up.
type DemoDevice struct {
	SampleRate int
}

func (d DemoDevice) Open(ctx context.Context) (Stream, error) {
	rate := d.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return &demoStream{
		rate:    rate,
		chunk:   rate / 20, // 50ms of samples per read
		stopped: make(chan struct{}),
	}, nil
}

type demoStream struct {
	rate    int
	chunk   int
	phase   float64
	freq    float64
	stopped chan struct{}
}

func (s *demoStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopped:
		return nil, context.Canceled
	case <-time.After(50 * time.Millisecond):
	}

	if s.freq == 0 || rand.IntN(8) == 0 {
		s.freq = 120 + rand.Float64()*600
	}

	out := make([]byte, 2*s.chunk)
	step := 2 * math.Pi * s.freq / float64(s.rate)
	for i := 0; i < s.chunk; i++ {
		v := 0.5*math.Sin(s.phase) + 0.15*(rand.Float64()*2-1)
		s.phase += step
		sample := int16(v * 20000)
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out, nil
}

func (s *demoStream) Stop() error {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
	return nil
}
