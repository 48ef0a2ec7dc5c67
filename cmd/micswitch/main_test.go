package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/Danondso/micswitch/internal/config"
)

func TestRunMissingActivationWord(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	code := run([]string{"-c", cfgPath}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(stderr.String(), "activation word is required") {
		t.Errorf("expected activation word error, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Examples:") {
		t.Error("expected usage epilog with examples")
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--bogus"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(stderr.String(), "unknown flag: --bogus") {
		t.Errorf("expected the parse error on stderr, got %q", stderr.String())
	}
}

func TestRunBadFlagValue(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-t", "abc"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(stderr.String(), `invalid argument "abc"`) {
		t.Errorf("expected the invalid value on stderr, got %q", stderr.String())
	}
}

func TestRunNegativeSleepTime(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if code := run([]string{"-c", cfgPath, "-a", "switch", "-t", "-5"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
}

func TestRunBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("theme = [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"-c", cfgPath, "-a", "x"}, &stdout, &stderr); code != exitError {
		t.Errorf("expected exit %d, got %d (stderr %q)", exitError, code, stderr.String())
	}
}

func TestRunWriteConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	code := run([]string{"-c", cfgPath, "--write-config", "-a", "hello", "-f", "USB", "-t", "45", "--no-chime"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr %q)", code, stderr.String())
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	sw := cfg.Switcher
	if sw.ActivationWord != "hello" || sw.MicFilter != "USB" || sw.SleepTimeSec != 45 || sw.SleepWord != "sleep" {
		t.Errorf("unexpected switcher config: %+v", sw)
	}
	if cfg.Audio.ChimeEnabled {
		t.Error("expected chimes disabled")
	}
}

func TestApplyFlagsKeepsConfigValues(t *testing.T) {
	cfg := config.Default()
	cfg.Switcher.ActivationWord = "next"
	cfg.Switcher.SleepWord = "done"
	cfg.Switcher.SleepTimeSec = 10

	var opts options
	var stderr bytes.Buffer
	fs := newFlagSet(&opts, &stderr)
	if err := fs.Parse([]string{"-s", "stop"}); err != nil {
		t.Fatal(err)
	}
	applyFlags(cfg, fs, &opts)

	if cfg.Switcher.ActivationWord != "next" {
		t.Errorf("expected config activation word kept, got %q", cfg.Switcher.ActivationWord)
	}
	if cfg.Switcher.SleepWord != "stop" {
		t.Errorf("expected flag sleep word, got %q", cfg.Switcher.SleepWord)
	}
	if cfg.Switcher.SleepTimeSec != 10 {
		t.Errorf("expected config sleep time kept, got %d", cfg.Switcher.SleepTimeSec)
	}
}

func TestFlagShorthands(t *testing.T) {
	var opts options
	var stderr bytes.Buffer
	fs := newFlagSet(&opts, &stderr)
	for _, name := range []string{"list-mics", "mic-filter", "activation-word", "sleep-word", "sleep-time", "config"} {
		f := fs.Lookup(name)
		if f == nil || f.Shorthand == "" {
			t.Errorf("expected flag --%s with a shorthand", name)
		}
	}
	if err := fs.Parse([]string{"--help"}); err != pflag.ErrHelp {
		t.Errorf("expected ErrHelp, got %v", err)
	}
}
