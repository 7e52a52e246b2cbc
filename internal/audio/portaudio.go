package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is the default InputDevice and OutputDevice, backed by the
// system's default host API devices.
type PortAudio struct{}

// OpenPortAudio initializes the PortAudio library. Close must be called
// once the device is no longer needed.
func OpenPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudio{}, nil
}

// Close terminates the PortAudio library.
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudio) OpenInput(sampleRate, framesPerBuffer int) (InputStream, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return &paInput{stream: stream, buf: buf}, nil
}

func (p *PortAudio) OpenOutput(sampleRate, channels, framesPerBuffer int) (OutputStream, error) {
	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return &paOutput{stream: stream, buf: buf}, nil
}

type paInput struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *paInput) Read(dst []int16) (int, error) {
	if err := s.stream.Read(); err != nil {
		return 0, err
	}
	return copy(dst, s.buf), nil
}

func (s *paInput) Close() error {
	_ = s.stream.Stop()
	return s.stream.Close()
}

type paOutput struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *paOutput) Write(src []int16) error {
	n := copy(s.buf, src)
	clear(s.buf[n:])
	return s.stream.Write()
}

func (s *paOutput) Close() error {
	_ = s.stream.Stop()
	return s.stream.Close()
}

// DeviceInfo describes one audio device.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// Devices lists the devices PortAudio can see. The library must be
// initialized.
func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      defIn != nil && d.Name == defIn.Name,
			DefaultOutput:     defOut != nil && d.Name == defOut.Name,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
