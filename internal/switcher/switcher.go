// Package switcher cycles the active microphone on a spoken activation
// word and restores the starting one on a sleep word or inactivity.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/looplab/fsm"

	"github.com/Danondso/micswitch/internal/device"
	"github.com/Danondso/micswitch/internal/transcriber"
)

// Switcher states.
const (
	StateListening = "listening"
	StateSleeping  = "sleeping"
)

const (
	eventActivate = "activate"
	eventSleep    = "sleep"
)

// ErrListenTimeout is returned by Session.Listen when no speech began
// before the timeout.
var ErrListenTimeout = errors.New("no speech before timeout")

// ErrNoDevices is returned by New for an empty device list.
var ErrNoDevices = errors.New("switcher needs at least one device")

// Session is an open capture stream on one device.
type Session interface {
	Calibrate(ctx context.Context, d time.Duration) error
	Listen(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Capturer opens capture sessions.
type Capturer interface {
	Open(dev device.Device) (Session, error)
}

// Reporter receives user-facing status.
type Reporter interface {
	Ready(dev device.Device)
	Waiting()
	Recognized(text string)
	Switched(dev device.Device)
	Restored(dev device.Device, reason string)
	NotUnderstood()
	ServiceError(err error)
}

// Cue plays audible feedback.
type Cue interface {
	PlaySwitch()
	PlaySleep()
}

// Options configures the words and timing of a Switcher.
type Options struct {
	ActivationWord string
	SleepWord      string
	SleepTime      time.Duration // zero disables the inactivity timeout
	Calibration    time.Duration
}

// Switcher owns the filtered device list and the active index.
type Switcher struct {
	devices  []device.Device
	opts     Options
	capturer Capturer
	tr       transcriber.Transcriber
	reporter Reporter
	cue      Cue
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	start   int
	current int
	machine *fsm.FSM
}

// New creates a Switcher starting on the first device. cue and logger may
// be nil.
func New(devices []device.Device, opts Options, capturer Capturer, tr transcriber.Transcriber, reporter Reporter, cue Cue, logger *log.Logger) (*Switcher, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Switcher{
		devices:  devices,
		opts:     opts,
		capturer: capturer,
		tr:       tr,
		reporter: reporter,
		cue:      cue,
		logger:   logger,
		now:      time.Now,
	}

	// Callbacks only touch Switcher fields; the caller of Event holds s.mu.
	s.machine = fsm.NewFSM(
		StateListening,
		fsm.Events{
			{Name: eventActivate, Src: []string{StateListening}, Dst: StateListening},
			{Name: eventSleep, Src: []string{StateListening}, Dst: StateSleeping},
		},
		fsm.Callbacks{
			"before_" + eventActivate: func(_ context.Context, _ *fsm.Event) {
				s.current = (s.current + 1) % len(s.devices)
			},
			"enter_" + StateSleeping: func(_ context.Context, _ *fsm.Event) {
				s.current = s.start
			},
		},
	)
	return s, nil
}

// Current returns the active device.
func (s *Switcher) Current() device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[s.current]
}

// Start returns the device that Restore returns to.
func (s *Switcher) Start() device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[s.start]
}

// State returns the state machine's current state.
func (s *Switcher) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// Switch advances to the next device, wrapping at the end of the list, and
// returns it. It fails once the switcher is sleeping.
func (s *Switcher) Switch(ctx context.Context) (device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.current
	err := s.machine.Event(ctx, eventActivate)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return device.Device{}, fmt.Errorf("switch: %w", err)
	}
	s.logger.Printf("switch: index %d -> %d (%q)", from, s.current, s.devices[s.current].Name)
	return s.devices[s.current], nil
}

// Restore returns to the starting device and puts the switcher to sleep.
func (s *Switcher) Restore(ctx context.Context) (device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Event(ctx, eventSleep); err != nil {
		return device.Device{}, fmt.Errorf("restore: %w", err)
	}
	s.logger.Printf("sleep: restored index %d (%q)", s.current, s.devices[s.current].Name)
	return s.devices[s.current], nil
}

// Command is the meaning of a transcript.
type Command int

const (
	CommandNone Command = iota
	CommandActivate
	CommandSleep
)

// Classify maps a transcript to a command by its first word, compared
// case-insensitively with surrounding punctuation removed.
func Classify(transcript, activationWord, sleepWord string) Command {
	word := firstWord(transcript)
	switch {
	case word == "":
		return CommandNone
	case activationWord != "" && strings.EqualFold(word, activationWord):
		return CommandActivate
	case sleepWord != "" && strings.EqualFold(word, sleepWord):
		return CommandSleep
	default:
		return CommandNone
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// Run listens on the current device until the switcher sleeps or ctx is
// cancelled. It returns nil after a sleep and ctx.Err() on cancellation.
// Capture failures other than a listen timeout are fatal.
func (s *Switcher) Run(ctx context.Context) error {
	dev := s.Current()
	session, err := s.open(ctx, dev)
	if err != nil {
		return err
	}
	defer func() {
		if session != nil {
			_ = session.Close()
		}
	}()

	lastActivity := s.now()
	for {
		s.reporter.Waiting()
		wavData, err := session.Listen(ctx, s.opts.SleepTime)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrListenTimeout):
			idle := s.now().Sub(lastActivity)
			s.logger.Printf("sleep: listen timeout, idle=%s", idle.Round(time.Millisecond))
			if s.opts.SleepTime > 0 && idle >= s.opts.SleepTime {
				return s.sleep(ctx, "inactivity timeout")
			}
			continue
		case err != nil:
			return fmt.Errorf("capture on %q: %w", dev.Name, err)
		}

		text, err := s.tr.Transcribe(ctx, wavData)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, transcriber.ErrNoSpeech):
			s.reporter.NotUnderstood()
			continue
		case err != nil:
			s.reporter.ServiceError(err)
			continue
		}

		s.reporter.Recognized(text)
		switch Classify(text, s.opts.ActivationWord, s.opts.SleepWord) {
		case CommandActivate:
			if err := session.Close(); err != nil {
				s.logger.Printf("capture close error: %v", err)
			}
			session = nil
			if dev, err = s.Switch(ctx); err != nil {
				return err
			}
			s.reporter.Switched(dev)
			if s.cue != nil {
				s.cue.PlaySwitch()
			}
			if session, err = s.open(ctx, dev); err != nil {
				return err
			}
			lastActivity = s.now()
		case CommandSleep:
			return s.sleep(ctx, "sleep word")
		}
	}
}

// open starts capture on dev and calibrates it.
func (s *Switcher) open(ctx context.Context, dev device.Device) (Session, error) {
	session, err := s.capturer.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dev.Name, err)
	}
	if err := session.Calibrate(ctx, s.opts.Calibration); err != nil {
		_ = session.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("calibrate %q: %w", dev.Name, err)
	}
	s.reporter.Ready(dev)
	return session, nil
}

func (s *Switcher) sleep(ctx context.Context, reason string) error {
	dev, err := s.Restore(ctx)
	if err != nil {
		return err
	}
	s.reporter.Restored(dev, reason)
	if s.cue != nil {
		s.cue.PlaySleep()
	}
	return nil
}
