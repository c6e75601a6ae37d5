package audio

import "math"

// Frame is one visualization update: per-bin magnitudes in [0, 1],
// lowest frequency first.
type Frame struct {
	Bins []float64
}

// spectrum computes bin magnitudes from the tail of a PCM chunk with a
// direct DFT over a window of 2*bins samples. The window matches the
// classic analyser configuration (fftSize 64 → 32 bins); at these sizes
// the naive transform is a handful of microseconds per frame.
func spectrum(pcm []byte, bins int) []float64 {
	n := 2 * bins
	samples := decodePCM16(pcm, n)
	out := make([]float64, bins)
	if len(samples) < n {
		return out
	}

	for k := range bins {
		var re, im float64
		for i, s := range samples {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += s * math.Cos(angle)
			im += s * math.Sin(angle)
		}
		mag := 2 * math.Hypot(re, im) / float64(n)
		out[k] = math.Min(mag, 1)
	}
	return out
}

// decodePCM16 returns up to n trailing samples normalized to [-1, 1].
func decodePCM16(pcm []byte, n int) []float64 {
	total := len(pcm) / 2
	if total > n {
		pcm = pcm[(total-n)*2:]
		total = n
	}
	out := make([]float64, total)
	for i := range total {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = float64(s) / 32768
	}
	return out
}
