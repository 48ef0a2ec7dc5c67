package recorder

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrWaitTimeout is returned by Listen when no speech starts within the
// requested timeout.
var ErrWaitTimeout = errors.New("listening timed out while waiting for speech")

const (
	dampingBase = 0.15 // threshold damping per second of audio
	energyRatio = 1.5  // how far above ambient energy speech must be
)

// frameReader yields consecutive mono frames of a fixed duration.
type frameReader interface {
	ReadFrame() ([]int16, error)
}

// SegmentOptions controls how a stream of frames is cut into utterances.
type SegmentOptions struct {
	EnergyThreshold float64 // normalized RMS that counts as speech
	DynamicEnergy   bool    // adapt the threshold while waiting for speech
	Pause           time.Duration
	PhraseMin       time.Duration
	NonSpeaking     time.Duration
	PhraseLimit     time.Duration // 0 means unlimited
}

// segmenter is an energy-threshold utterance detector. All timing is in
// audio time (frames read), never wall-clock time.
type segmenter struct {
	opts      SegmentOptions
	frameDur  time.Duration
	threshold float64
}

func newSegmenter(opts SegmentOptions, frameDur time.Duration) *segmenter {
	return &segmenter{
		opts:      opts,
		frameDur:  frameDur,
		threshold: opts.EnergyThreshold,
	}
}

// Threshold returns the current energy threshold.
func (s *segmenter) Threshold() float64 {
	return s.threshold
}

// frames converts d to a whole number of frames, rounding up.
func (s *segmenter) frames(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + s.frameDur - 1) / s.frameDur)
}

// adjust moves the threshold toward energy*energyRatio.
func (s *segmenter) adjust(energy float64) {
	damping := math.Pow(dampingBase, s.frameDur.Seconds())
	target := energy * energyRatio
	s.threshold = s.threshold*damping + target*(1-damping)
}

// calibrate reads d of ambient audio and adapts the threshold to it.
func (s *segmenter) calibrate(ctx context.Context, src frameReader, d time.Duration) error {
	n := s.frames(d)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.ReadFrame()
		if err != nil {
			return err
		}
		s.adjust(computeRMS(frame))
	}
	return nil
}

// listen blocks until one utterance has been captured and returns its
// samples. A timeout of 0 waits for speech indefinitely.
func (s *segmenter) listen(ctx context.Context, src frameReader, timeout time.Duration) ([]int16, error) {
	pauseFrames := max(s.frames(s.opts.Pause), 1)
	phraseMinFrames := s.frames(s.opts.PhraseMin)
	nonSpeakingFrames := min(max(s.frames(s.opts.NonSpeaking), 1), pauseFrames)
	limitFrames := s.frames(s.opts.PhraseLimit)
	timeoutFrames := s.frames(timeout)

	elapsed, pauseCount := 0, 0
	var buf [][]int16

	for {
		// Wait for speech, keeping a short pre-roll so the onset is not clipped.
		buf = buf[:0]
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			elapsed++
			if timeoutFrames > 0 && elapsed > timeoutFrames {
				return nil, ErrWaitTimeout
			}
			frame, err := src.ReadFrame()
			if err != nil {
				return nil, err
			}
			buf = append(buf, frame)
			if len(buf) > nonSpeakingFrames {
				buf = buf[len(buf)-nonSpeakingFrames:]
			}

			energy := computeRMS(frame)
			if energy > s.threshold {
				break
			}
			if s.opts.DynamicEnergy {
				s.adjust(energy)
			}
		}

		// Record until a long enough pause or the phrase limit.
		phraseFrames := 0
		pauseCount = 0
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if limitFrames > 0 && phraseFrames >= limitFrames {
				break
			}
			frame, err := src.ReadFrame()
			if err != nil {
				return nil, err
			}
			buf = append(buf, frame)
			phraseFrames++

			if computeRMS(frame) > s.threshold {
				pauseCount = 0
			} else {
				pauseCount++
			}
			if pauseCount >= pauseFrames {
				break
			}
		}

		// Too little speech counts as a click or cough; keep waiting.
		if phraseFrames-pauseCount+1 >= phraseMinFrames {
			break
		}
	}

	// Drop the trailing pause, keeping NonSpeaking worth of it.
	if trim := pauseCount - nonSpeakingFrames; trim > 0 && trim < len(buf) {
		buf = buf[:len(buf)-trim]
	}

	var samples []int16
	for _, f := range buf {
		samples = append(samples, f...)
	}
	return samples, nil
}
