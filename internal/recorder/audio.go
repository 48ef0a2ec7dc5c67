package recorder

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

// computeRMS computes the root-mean-square of mono int16 samples
// normalized to [0.0, 1.0].
func computeRMS(buf []int16) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// Resample converts PCM int16 samples from inputRate to outputRate using
// polyphase FIR filtering (go-audio-resampling, QualityLow preset; plenty
// for speech).
func Resample(samples []int16, inputRate, outputRate float64) ([]int16, error) {
	if inputRate == outputRate || len(samples) == 0 {
		return samples, nil
	}

	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s) / 32768.0
	}

	resampled, err := resampling.ResampleMono(floats, inputRate, outputRate, resampling.QualityLow)
	if err != nil {
		return nil, fmt.Errorf("resample mono: %w", err)
	}

	out := make([]int16, len(resampled))
	for i, f := range resampled {
		v := math.Round(f * 32768.0)
		out[i] = int16(max(min(v, 32767), -32768))
	}
	return out, nil
}

// DownmixStereoToMono converts interleaved stereo int16 samples to mono
// by averaging left and right channels.
func DownmixStereoToMono(stereo []int16) []int16 {
	mono := make([]int16, len(stereo)/2)
	for i := 0; i+1 < len(stereo); i += 2 {
		mono[i/2] = int16((int32(stereo[i]) + int32(stereo[i+1])) / 2)
	}
	return mono
}

// memFile is an in-memory io.WriteSeeker for WAV encoding.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(m.pos) + offset
	case io.SeekEnd:
		pos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if pos < 0 || pos > int64(len(m.buf)) {
		return 0, fmt.Errorf("seek position %d out of bounds [0, %d]", pos, len(m.buf))
	}
	m.pos = int(pos)
	return pos, nil
}

// EncodeWAV encodes mono int16 PCM samples as a 16-bit WAV file in memory.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	f := &memFile{}

	intBuf := &audio.IntBuffer{
		Data:           make([]int, len(samples)),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		intBuf.Data[i] = int(s)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(intBuf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return f.buf, nil
}
