package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Probe returns the playing time of the WAV file at path.
func Probe(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("locating pcm data in %s: %w", path, err)
	}
	bytesPerSec := int(dec.SampleRate) * int(dec.NumChans) * int(dec.BitDepth) / 8
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("%s has an empty format header", path)
	}
	return time.Duration(dec.PCMSize) * time.Second / time.Duration(bytesPerSec), nil
}
