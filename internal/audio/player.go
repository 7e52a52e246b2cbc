package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/faiface/beep"
	beepwav "github.com/faiface/beep/wav"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Speeds are the playback multipliers offered to the user, fastest first.
var Speeds = []float64{2.0, 1.5, 1.2, 1.0, 0.8, 0.6}

// DefaultSpeed plays audio unchanged.
const DefaultSpeed = 1.0

// resampleQuality trades CPU for fidelity in the speed change.
const resampleQuality = 4

// Player streams WAV files to an OutputDevice.
type Player struct {
	cfg    Config
	device OutputDevice
}

// NewPlayer creates a Player.
func NewPlayer(cfg Config, device OutputDevice) *Player {
	return &Player{cfg: cfg, device: device}
}

// Play applies the speed change to the file at path, streams it to the
// output device and deletes it. The file is deleted on every path out,
// including errors and cancellation.
func (p *Player) Play(ctx context.Context, path string, speed float64) error {
	defer removeQuietly(path)

	if speed != DefaultSpeed {
		if err := ChangeSpeed(path, speed); err != nil {
			return err
		}
	}
	return p.stream(ctx, path)
}

func (p *Player) stream(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid wav file", path)
	}
	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	depth := int(dec.BitDepth)

	out, err := p.device.OpenOutput(rate, channels, p.cfg.FramesPerBuffer)
	if err != nil {
		return err
	}
	defer out.Close()

	start := time.Now()
	ib := &goaudio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, p.cfg.FramesPerBuffer*channels),
	}
	pcm := make([]int16, len(ib.Data))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := dec.PCMBuffer(ib)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			pcm[i] = toInt16(ib.Data[i], depth)
		}
		if err := out.Write(pcm[:n]); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	logger().Debug("played", "path", path, "took", time.Since(start))
	return nil
}

// ChangeSpeed rewrites the WAV at path so it plays speed times faster. The
// samples are treated as if recorded at rate*speed and resampled back to
// the original rate, so the header keeps the original sample rate.
func ChangeSpeed(path string, speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("invalid playback speed %v", speed)
	}
	if speed == DefaultSpeed {
		return nil
	}

	// The output overwrites the input, so decode from memory.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	streamer, format, err := beepwav.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	defer streamer.Close()

	spedUp := beep.SampleRate(int(math.Round(float64(format.SampleRate) * speed)))
	if spedUp <= 0 {
		return fmt.Errorf("playback speed %v too low for %d Hz audio", speed, format.SampleRate)
	}
	resampled := beep.Resample(resampleQuality, spedUp, format.SampleRate, streamer)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rewriting %s: %w", path, err)
	}
	if err := beepwav.Encode(f, resampled, format); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// ValidSpeed reports whether s is one of the offered Speeds.
func ValidSpeed(s float64) bool {
	for _, v := range Speeds {
		if v == s {
			return true
		}
	}
	return false
}
