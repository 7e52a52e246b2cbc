package audio

import (
	"log/slog"
	"math"
	"time"
)

func logger() *slog.Logger {
	return slog.Default().With("component", "audio")
}

// computeRMS returns the root-mean-square energy of 16-bit samples, in the
// same units as the samples. Returns 0 for an empty buffer.
func computeRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// framesDuration is the playing time of n frames at sampleRate.
func framesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// toInt16 scales a decoded sample of the given bit depth to 16 bits.
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 16 || bitDepth == 0:
	case bitDepth == 8:
		// 8-bit WAV is unsigned.
		v = (v - 128) << 8
	case bitDepth > 16:
		v >>= bitDepth - 16
	default:
		v <<= 16 - bitDepth
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
