package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/Danondso/micswitch/internal/config"
	"github.com/Danondso/micswitch/internal/device"
)

// frameDuration is the length of one blocking read from the input stream.
const frameDuration = 50 * time.Millisecond

// Options configures capture sessions.
type Options struct {
	TargetSampleRate int
	Segment          SegmentOptions
}

// OptionsFromConfig builds capture options from the audio config section.
func OptionsFromConfig(cfg *config.AudioConfig) Options {
	return Options{
		TargetSampleRate: cfg.TargetSampleRate,
		Segment: SegmentOptions{
			EnergyThreshold: cfg.EnergyThreshold,
			DynamicEnergy:   cfg.DynamicEnergy,
			Pause:           time.Duration(cfg.PauseMs) * time.Millisecond,
			PhraseMin:       time.Duration(cfg.PhraseMinMs) * time.Millisecond,
			NonSpeaking:     time.Duration(cfg.NonSpeakingMs) * time.Millisecond,
			PhraseLimit:     time.Duration(cfg.PhraseLimitSec) * time.Second,
		},
	}
}

// Recorder opens capture sessions on specific input devices.
// Call portaudio.Initialize() before using this.
type Recorder struct {
	opts   Options
	logger *log.Logger
}

// New creates a Recorder.
func New(opts Options, logger *log.Logger) *Recorder {
	return &Recorder{opts: opts, logger: logger}
}

// InputDevices lists host devices that can capture audio, in host order.
func InputDevices() ([]device.Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var out []device.Device
	for i, info := range all {
		if info == nil || info.MaxInputChannels < 1 {
			continue
		}
		out = append(out, device.Device{
			Index:             len(out),
			HostIndex:         i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	if len(out) == 0 {
		return nil, device.ErrNoDevicesFound
	}
	return out, nil
}

// Open starts a blocking input stream on dev. The caller owns the returned
// session and must Close it.
func (r *Recorder) Open(dev device.Device) (*Session, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if dev.HostIndex < 0 || dev.HostIndex >= len(all) {
		return nil, fmt.Errorf("device %q: host index %d out of range", dev.Name, dev.HostIndex)
	}
	info := all[dev.HostIndex]

	channels := min(max(info.MaxInputChannels, 1), 2)
	sampleRate := info.DefaultSampleRate
	framesPerBuffer := int(sampleRate * frameDuration.Seconds())

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = channels
	params.SampleRate = sampleRate
	params.FramesPerBuffer = framesPerBuffer

	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream on %q: %w", dev.Name, err)
	}

	if r.logger != nil {
		r.logger.Printf("capture opened: %q host_index=%d rate=%.0f channels=%d", dev.Name, dev.HostIndex, sampleRate, channels)
	}

	src := &streamReader{stream: stream, buf: buf, channels: channels}
	frameDur := time.Duration(float64(framesPerBuffer) / sampleRate * float64(time.Second))
	return newSession(dev, src, src.close, sampleRate, frameDur, r.opts, r.logger), nil
}

// streamReader adapts a blocking PortAudio stream to frameReader.
type streamReader struct {
	stream   *portaudio.Stream
	buf      []int16
	channels int
}

func (s *streamReader) ReadFrame() ([]int16, error) {
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if s.channels == 2 {
		return DownmixStereoToMono(s.buf), nil
	}
	frame := make([]int16, len(s.buf))
	copy(frame, s.buf)
	return frame, nil
}

func (s *streamReader) close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}

// Session is an open capture stream on one input device.
type Session struct {
	dev      device.Device
	src      frameReader
	closer   func() error
	seg      *segmenter
	nativeSR float64
	targetSR int
	logger   *log.Logger

	mu     sync.Mutex
	closed bool
}

func newSession(dev device.Device, src frameReader, closer func() error, nativeSR float64, frameDur time.Duration, opts Options, logger *log.Logger) *Session {
	return &Session{
		dev:      dev,
		src:      src,
		closer:   closer,
		seg:      newSegmenter(opts.Segment, frameDur),
		nativeSR: nativeSR,
		targetSR: opts.TargetSampleRate,
		logger:   logger,
	}
}

// Device returns the device this session captures from.
func (s *Session) Device() device.Device {
	return s.dev
}

// Calibrate listens to d of ambient audio and adapts the speech threshold.
func (s *Session) Calibrate(ctx context.Context, d time.Duration) error {
	if err := s.seg.calibrate(ctx, s.src, d); err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("capture calibrated: %q threshold=%.4f", s.dev.Name, s.seg.Threshold())
	}
	return nil
}

// Listen blocks until one utterance is captured and returns it as mono
// 16-bit WAV at the target sample rate. It returns ErrWaitTimeout if no
// speech starts within timeout; a zero timeout waits indefinitely.
func (s *Session) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	samples, err := s.seg.listen(ctx, s.src, timeout)
	if err != nil {
		return nil, err
	}

	rate := int(s.nativeSR)
	if s.targetSR > 0 && rate != s.targetSR {
		samples, err = Resample(samples, s.nativeSR, float64(s.targetSR))
		if err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
		rate = s.targetSR
	}

	wavData, err := EncodeWAV(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("capture utterance: samples=%d rate=%d wav_size=%d", len(samples), rate, len(wavData))
	}
	return wavData, nil
}

// Close stops the stream. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
