package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/Danondso/micswitch/internal/device"
)

const testFrameLen = 160 // 100ms at 1600 Hz keeps the fixtures small

// scriptedFrames replays a fixed sequence of frames, then reports io.EOF.
type scriptedFrames struct {
	frames [][]int16
	reads  int
}

func (s *scriptedFrames) ReadFrame() ([]int16, error) {
	if s.reads >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func silent() []int16 {
	return make([]int16, testFrameLen)
}

func loud() []int16 {
	f := make([]int16, testFrameLen)
	for i := range f {
		f[i] = int16(10000 * math.Sin(2*math.Pi*float64(i)/16))
	}
	return f
}

func script(pattern string) *scriptedFrames {
	s := &scriptedFrames{}
	for _, c := range pattern {
		if c == 'L' {
			s.frames = append(s.frames, loud())
		} else {
			s.frames = append(s.frames, silent())
		}
	}
	return s
}

func testSegmentOptions() SegmentOptions {
	return SegmentOptions{
		EnergyThreshold: 0.01,
		DynamicEnergy:   false,
		Pause:           300 * time.Millisecond,
		PhraseMin:       200 * time.Millisecond,
		NonSpeaking:     100 * time.Millisecond,
	}
}

func TestListenTimesOutOnSilence(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	src := script("ssssssssssssssssssss")

	_, err := seg.listen(context.Background(), src, time.Second)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if src.reads != 10 {
		t.Errorf("expected 10 frames read before timeout, got %d", src.reads)
	}
}

func TestListenCapturesUtterance(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	src := script("ssLLLsssLL")

	samples, err := seg.listen(context.Background(), src, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Three speech frames plus one frame of trailing silence.
	if len(samples) != 4*testFrameLen {
		t.Errorf("expected %d samples, got %d", 4*testFrameLen, len(samples))
	}
	if src.reads != 8 {
		t.Errorf("expected to stop after the pause (8 reads), got %d", src.reads)
	}
}

func TestListenDiscardsShortClick(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	// A one-frame click followed by a real phrase.
	src := script("LsssLLLsss")

	samples, err := seg.listen(context.Background(), src, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 4*testFrameLen {
		t.Errorf("expected only the second phrase (%d samples), got %d", 4*testFrameLen, len(samples))
	}
	if src.reads != 10 {
		t.Errorf("expected 10 reads, got %d", src.reads)
	}
}

func TestListenPhraseLimit(t *testing.T) {
	opts := testSegmentOptions()
	opts.PhraseLimit = 300 * time.Millisecond
	seg := newSegmenter(opts, 100*time.Millisecond)
	src := script("LLLLLLLLLL")

	samples, err := seg.listen(context.Background(), src, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Onset frame plus three limited phrase frames.
	if len(samples) != 4*testFrameLen {
		t.Errorf("expected %d samples, got %d", 4*testFrameLen, len(samples))
	}
}

func TestListenCancelled(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := seg.listen(ctx, script("LLL"), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestListenReadError(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	if _, err := seg.listen(context.Background(), script("ss"), 0); !errors.Is(err, io.EOF) {
		t.Errorf("expected read error to propagate, got %v", err)
	}
}

func TestCalibrateRaisesThresholdInNoise(t *testing.T) {
	opts := testSegmentOptions()
	opts.EnergyThreshold = 0.001
	seg := newSegmenter(opts, 100*time.Millisecond)

	if err := seg.calibrate(context.Background(), script("LLLLLLLLLL"), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	noise := computeRMS(loud())
	if seg.Threshold() <= noise {
		t.Errorf("expected threshold above noise level %.4f, got %.4f", noise, seg.Threshold())
	}
	if seg.Threshold() > noise*energyRatio {
		t.Errorf("expected threshold at most %.4f, got %.4f", noise*energyRatio, seg.Threshold())
	}
}

func TestCalibrateLowersThresholdInSilence(t *testing.T) {
	seg := newSegmenter(testSegmentOptions(), 100*time.Millisecond)
	if err := seg.calibrate(context.Background(), script("ssssssssss"), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// After one second of silence the threshold decays by 0.15.
	want := 0.01 * dampingBase
	if math.Abs(seg.Threshold()-want) > 1e-9 {
		t.Errorf("expected threshold %.6f, got %.6f", want, seg.Threshold())
	}
}

func TestSessionListenEncodesWAV(t *testing.T) {
	opts := Options{TargetSampleRate: 1600, Segment: testSegmentOptions()}
	closed := false
	s := newSession(device.Device{Name: "Test Mic"}, script("LLLsss"), func() error {
		closed = true
		return nil
	}, 1600, 100*time.Millisecond, opts, log.New(io.Discard, "", 0))

	data, err := s.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("expected a valid WAV file")
	}
	if dec.SampleRate != 1600 {
		t.Errorf("expected sample rate 1600, got %d", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("expected mono, got %d channels", dec.NumChans)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Error("expected closer to run")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestResampleOutputLength(t *testing.T) {
	input := make([]int16, 48000)
	for i := range input {
		input[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}

	output, err := Resample(input, 48000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedLen := 16000
	tolerance := expectedLen / 100
	if len(output) < expectedLen-tolerance || len(output) > expectedLen+tolerance {
		t.Errorf("expected ~%d samples, got %d", expectedLen, len(output))
	}
}

func TestResampleSameRate(t *testing.T) {
	input := []int16{100, 200, 300, 400, 500}
	output, err := Resample(input, 16000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output) != len(input) {
		t.Errorf("expected %d samples, got %d", len(input), len(output))
	}
}

func TestDownmixStereoToMono(t *testing.T) {
	mono := DownmixStereoToMono([]int16{100, 200, 300, 400, -500, -600})
	expected := []int16{150, 350, -550}
	if len(mono) != len(expected) {
		t.Fatalf("expected %d mono samples, got %d", len(expected), len(mono))
	}
	for i, v := range mono {
		if v != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], v)
		}
	}
}

func TestEncodeWAVRoundTripsSamples(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if dec.BitDepth != 16 {
		t.Errorf("expected 16-bit, got %d", dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(buf.Data))
	}
	for i, s := range samples {
		if buf.Data[i] != int(s) {
			t.Errorf("sample %d: expected %d, got %d", i, s, buf.Data[i])
		}
	}
}

func TestComputeRMS(t *testing.T) {
	if got := computeRMS(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := computeRMS(silent()); got != 0 {
		t.Errorf("expected 0 for silence, got %f", got)
	}
	full := []int16{-32768, -32768}
	if got := computeRMS(full); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0 for full scale, got %f", got)
	}
}
