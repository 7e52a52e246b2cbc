package audio

// InputDevice opens capture streams.
type InputDevice interface {
	OpenInput(sampleRate, framesPerBuffer int) (InputStream, error)
}

// InputStream delivers mono 16-bit samples.
type InputStream interface {
	// Read blocks until up to len(buf) samples are available and returns
	// how many were written. io.EOF means the source is exhausted.
	Read(buf []int16) (int, error)
	Close() error
}

// OutputDevice opens playback streams.
type OutputDevice interface {
	OpenOutput(sampleRate, channels, framesPerBuffer int) (OutputStream, error)
}

// OutputStream accepts interleaved 16-bit samples.
type OutputStream interface {
	// Write blocks until buf has been queued for playback.
	Write(buf []int16) error
	// Close drains pending audio and releases the stream.
	Close() error
}
