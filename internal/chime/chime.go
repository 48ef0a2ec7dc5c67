package chime

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/Danondso/micswitch/internal/recorder"
)

const (
	toneRate     = 44100
	toneDuration = 0.15 // seconds
)

// Player plays short cues when the active microphone changes.
type Player struct {
	switchData []byte
	sleepData  []byte
	enabled    bool
	logger     *log.Logger
	initOnce   sync.Once
	initErr    error
	rate       beep.SampleRate // speaker rate, fixed by the first cue
	playing    sync.WaitGroup
}

// New creates a Player. Empty switchPath/sleepPath fall back to synthesized
// tones: ascending for a switch, descending for sleep. If enabled is false,
// PlaySwitch/PlaySleep are no-ops and nothing is loaded.
func New(switchPath, sleepPath string, enabled bool, logger *log.Logger) (*Player, error) {
	p := &Player{enabled: enabled, logger: logger}
	if !enabled {
		return p, nil
	}

	var err error
	if p.switchData, err = load(switchPath, 440, 523); err != nil {
		return nil, fmt.Errorf("switch chime: %w", err)
	}
	if p.sleepData, err = load(sleepPath, 523, 440); err != nil {
		return nil, fmt.Errorf("sleep chime: %w", err)
	}
	return p, nil
}

func load(path string, startFreq, endFreq float64) ([]byte, error) {
	if path == "" {
		return recorder.EncodeWAV(sweep(toneRate, toneDuration, startFreq, endFreq), toneRate)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// sweep renders a sine glide from startFreq to endFreq under a half-sine
// envelope so the tone starts and ends at zero.
func sweep(sampleRate int, duration, startFreq, endFreq float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	var phase float64
	for i := range samples {
		progress := float64(i) / float64(n)
		freq := startFreq + (endFreq-startFreq)*progress
		phase += 2 * math.Pi * freq / float64(sampleRate)
		samples[i] = int16(math.Sin(phase) * math.Sin(math.Pi*progress) * 16000)
	}
	return samples
}

func (p *Player) initSpeaker(format beep.Format) {
	p.initOnce.Do(func() {
		p.rate = format.SampleRate
		p.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
}

// toRate resamples s when its rate differs from the speaker's.
func toRate(s beep.Streamer, from, to beep.SampleRate) beep.Streamer {
	if from == to {
		return s
	}
	return beep.Resample(4, from, to, s)
}

func (p *Player) play(name string, data []byte) {
	if !p.enabled || len(data) == 0 {
		return
	}

	p.playing.Add(1)
	go func() {
		defer p.playing.Done()
		streamer, format, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			p.logf("chime: %s wav decode error: %v", name, err)
			return
		}
		defer streamer.Close()

		p.initSpeaker(format)
		if p.initErr != nil {
			p.logf("chime: speaker init error: %v", p.initErr)
			return
		}

		done := make(chan struct{})
		speaker.Play(beep.Seq(toRate(streamer, format.SampleRate, p.rate), beep.Callback(func() {
			close(done)
		})))
		<-done
	}()
}

func (p *Player) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// PlaySwitch plays the switch cue (non-blocking).
func (p *Player) PlaySwitch() {
	p.play("switch", p.switchData)
}

// PlaySleep plays the sleep cue (non-blocking).
func (p *Player) PlaySleep() {
	p.play("sleep", p.sleepData)
}

// Wait blocks until every cue started so far has finished playing.
func (p *Player) Wait() {
	p.playing.Wait()
}
