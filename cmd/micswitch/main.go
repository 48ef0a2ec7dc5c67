package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/Danondso/micswitch/internal/chime"
	"github.com/Danondso/micswitch/internal/config"
	"github.com/Danondso/micswitch/internal/console"
	"github.com/Danondso/micswitch/internal/device"
	"github.com/Danondso/micswitch/internal/recorder"
	"github.com/Danondso/micswitch/internal/switcher"
	"github.com/Danondso/micswitch/internal/transcriber"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usageEpilog = `
Examples:
  micswitch -l
    List all available microphones.
  micswitch -f USB -a hello
    Use microphones containing 'USB' and set activation word to 'hello'.
  micswitch -f 0,2 -a switch -s sleep -t 60
    Cycle between microphones 0 and 2 on 'switch'; return to the first
    on 'sleep' or after 60 seconds without activity.
`

// captureAdapter adapts *recorder.Recorder to the switcher.Capturer interface.
type captureAdapter struct {
	rec *recorder.Recorder
}

func (a captureAdapter) Open(dev device.Device) (switcher.Session, error) {
	s, err := a.rec.Open(dev)
	if err != nil {
		return nil, err
	}
	return sessionAdapter{s}, nil
}

// sessionAdapter maps the recorder's wait timeout to switcher.ErrListenTimeout.
type sessionAdapter struct {
	*recorder.Session
}

func (s sessionAdapter) Listen(ctx context.Context, timeout time.Duration) ([]byte, error) {
	data, err := s.Session.Listen(ctx, timeout)
	if errors.Is(err, recorder.ErrWaitTimeout) {
		return nil, fmt.Errorf("%w: %w", switcher.ErrListenTimeout, err)
	}
	return data, err
}

type options struct {
	listMics    bool
	micFilter   string
	activation  string
	sleepWord   string
	sleepTime   int
	configPath  string
	writeConfig bool
	noChime     bool
	debug       bool
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("micswitch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.BoolVarP(&opts.listMics, "list-mics", "l", false, "list available microphones and exit")
	fs.StringVarP(&opts.micFilter, "mic-filter", "f", "", "substring of microphone names, or comma-separated indices")
	fs.StringVarP(&opts.activation, "activation-word", "a", "", "word that switches to the next microphone")
	fs.StringVarP(&opts.sleepWord, "sleep-word", "s", "sleep", "word that restores the first microphone and exits")
	fs.IntVarP(&opts.sleepTime, "sleep-time", "t", 30, "seconds of inactivity before restoring the first microphone (0 disables)")
	fs.StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "path to the TOML config file")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config to --config and exit")
	fs.BoolVar(&opts.noChime, "no-chime", false, "disable audible cues")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging to stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Microphone switcher with activation word.\n\nUsage: micswitch [flags]\n\n")
		fs.PrintDefaults()
		fmt.Fprint(stderr, usageEpilog)
	}
	return fs
}

// applyFlags overrides config values with explicitly set flags. Flag
// defaults only apply when the config leaves the value empty.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet, opts *options) {
	sw := &cfg.Switcher
	if fs.Changed("mic-filter") {
		sw.MicFilter = opts.micFilter
	}
	if fs.Changed("activation-word") {
		sw.ActivationWord = opts.activation
	}
	if fs.Changed("sleep-word") || sw.SleepWord == "" {
		sw.SleepWord = opts.sleepWord
	}
	if fs.Changed("sleep-time") {
		sw.SleepTimeSec = opts.sleepTime
	}
	if opts.noChime {
		cfg.Audio.ChimeEnabled = false
	}
}

// warnPlaintext logs when audio would leave the machine unencrypted.
func warnPlaintext(baseURL string) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	host := u.Hostname()
	if u.Scheme == "http" && host != "localhost" && host != "127.0.0.1" && host != "::1" {
		log.Printf("WARNING: transcription base_url uses plaintext HTTP to non-local host %q; audio data will be sent unencrypted", host)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "%v\n", err)
		fs.Usage()
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return exitUsage
	}

	dbg := log.New(io.Discard, "", 0)
	if opts.debug {
		dbg = log.New(stderr, "[DEBUG] ", log.Ltime|log.Lmicroseconds)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}
	applyFlags(cfg, fs, &opts)
	dbg.Printf("config loaded: %s", opts.configPath)

	if cfg.Switcher.SleepTimeSec < 0 {
		fmt.Fprintf(stderr, "--sleep-time must not be negative\n")
		fs.Usage()
		return exitUsage
	}

	if opts.writeConfig {
		if err := config.Save(opts.configPath, cfg); err != nil {
			fmt.Fprintf(stderr, "write config: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "Config written to %s\n", opts.configPath)
		return exitOK
	}

	console.RegisterCustomThemes(cfg.CustomThemes)
	theme := console.LoadTheme(cfg.Theme)
	out := console.NewPrinter(stdout, theme)
	if opts.debug {
		dbg.SetOutput(console.NewLogWriter(stderr, theme))
	}

	if !opts.listMics && cfg.Switcher.ActivationWord == "" {
		fmt.Fprintf(stderr, "an activation word is required (--activation-word or [switcher] activation_word)\n")
		fs.Usage()
		return exitUsage
	}

	// Initialize PortAudio (Linux suppresses ALSA/JACK stderr noise)
	if err := initPortAudio(); err != nil {
		out.Fatal(fmt.Sprintf("portaudio init: %v", err))
		return exitError
	}
	defer func() { _ = portaudio.Terminate() }()
	dbg.Printf("portaudio initialized")

	devices, err := recorder.InputDevices()
	if err != nil {
		out.Fatal(fmt.Sprintf("enumerate microphones: %v", err))
		return exitError
	}
	dbg.Printf("device enumeration: %d input devices", len(devices))

	if opts.listMics {
		out.Devices(devices, recorder.DefaultInputName())
		return exitOK
	}

	selected, err := device.Filter(devices, cfg.Switcher.MicFilter)
	if err != nil {
		if errors.Is(err, device.ErrNoMatchingDevices) {
			out.Fatal("No microphones match the filter. Exiting.")
		} else {
			out.Fatal(err.Error())
		}
		return exitError
	}
	dbg.Printf("filter %q selected %d devices", cfg.Switcher.MicFilter, len(selected))

	trans, err := transcriber.New(&cfg.Transcription, dbg)
	if err != nil {
		out.Fatal(fmt.Sprintf("create transcriber: %v", err))
		return exitError
	}
	warnPlaintext(cfg.Transcription.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if hc, ok := trans.(transcriber.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			dbg.Printf("transcribe backend not reachable: %v", err)
		} else {
			dbg.Printf("transcribe backend reachable: %s", cfg.Transcription.BaseURL)
		}
	}

	chimePlayer, err := chime.New(cfg.Audio.ChimeSwitch, cfg.Audio.ChimeSleep, cfg.Audio.ChimeEnabled, dbg)
	if err != nil {
		out.Fatal(fmt.Sprintf("create chime player: %v", err))
		return exitError
	}

	rec := recorder.New(recorder.OptionsFromConfig(&cfg.Audio), dbg)
	sw, err := switcher.New(selected, switcher.Options{
		ActivationWord: cfg.Switcher.ActivationWord,
		SleepWord:      cfg.Switcher.SleepWord,
		SleepTime:      time.Duration(cfg.Switcher.SleepTimeSec) * time.Second,
		Calibration:    time.Duration(cfg.Audio.CalibrationMs) * time.Millisecond,
	}, captureAdapter{rec}, trans, out, chimePlayer, dbg)
	if err != nil {
		out.Fatal(err.Error())
		return exitError
	}

	out.Listening(cfg.Switcher.ActivationWord)
	err = sw.Run(ctx)
	chimePlayer.Wait()
	switch {
	case ctx.Err() != nil:
		dbg.Printf("switch loop interrupted on %q", sw.Current().Name)
		return exitOK
	case err != nil:
		out.Fatal(err.Error())
		return exitError
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
