package tui

import (
	"github.com/solaceapp/solace/internal/audio"
	"github.com/solaceapp/solace/internal/ingest"
)

// IngestUpdateMsg carries an orchestrator snapshot across the goroutine
// boundary into the bubbletea loop.
type IngestUpdateMsg struct {
	Snapshot ingest.Snapshot
}

// ChatTurnDoneMsg is sent when a submitted turn resolves. Err is non-nil
// for the connectivity fallback; the transcript already holds the
// apologetic reply in that case.
type ChatTurnDoneMsg struct {
	Err error
}

// AudioFrameMsg carries one waveform frame while recording.
type AudioFrameMsg struct {
	Frame audio.Frame
}

// MicStartedMsg is sent when the capture pipeline is live.
type MicStartedMsg struct{}

// MicErrorMsg is sent when microphone access fails; the pipeline stays
// idle and recording may be retried.
type MicErrorMsg struct {
	Err error
}

// TranscribedMsg carries the utterance resolved by stopping a capture.
// An empty text means transcription failed silently.
type TranscribedMsg struct {
	Text string
}

// ClearTransientErrorMsg clears the transient error bar after a timeout.
type ClearTransientErrorMsg struct{}
