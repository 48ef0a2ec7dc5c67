package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// DefaultBaseURL is the local OpenAI-compatible server the "openai"
// provider talks to out of the box.
const DefaultBaseURL = "http://localhost:5092"

// SwitcherConfig holds the spoken-command settings.
type SwitcherConfig struct {
	ActivationWord string `toml:"activation_word"`
	SleepWord      string `toml:"sleep_word"`
	SleepTimeSec   int    `toml:"sleep_time_sec"` // 0 disables the inactivity timeout
	MicFilter      string `toml:"mic_filter"`
}

// AudioConfig holds capture, segmentation and chime settings.
type AudioConfig struct {
	TargetSampleRate int     `toml:"target_sample_rate"`
	CalibrationMs    int     `toml:"calibration_ms"`
	EnergyThreshold  float64 `toml:"energy_threshold"` // normalized RMS, 0.0–1.0
	DynamicEnergy    bool    `toml:"dynamic_energy"`
	PauseMs          int     `toml:"pause_ms"`
	PhraseMinMs      int     `toml:"phrase_min_ms"`
	NonSpeakingMs    int     `toml:"non_speaking_ms"`
	PhraseLimitSec   int     `toml:"phrase_limit_sec"`
	ChimeEnabled     bool    `toml:"chime_enabled"`
	ChimeSwitch      string  `toml:"chime_switch"`
	ChimeSleep       string  `toml:"chime_sleep"`
}

// TranscriptionConfig holds transcription provider settings.
type TranscriptionConfig struct {
	Provider      string `toml:"provider"`
	BaseURL       string `toml:"base_url"`
	Model         string `toml:"model"`
	APIKey        string `toml:"api_key"`
	Language      string `toml:"language"`
	TimeoutSec    int    `toml:"timeout_sec"`
	Command       string `toml:"command"`
	TLSSkipVerify bool   `toml:"tls_skip_verify"`
}

// CustomTheme is a user-defined console colour palette.
type CustomTheme struct {
	Name      string `toml:"name"`
	Primary   string `toml:"primary"`
	Secondary string `toml:"secondary"`
	Accent    string `toml:"accent"`
	Error     string `toml:"error"`
	Success   string `toml:"success"`
	Warning   string `toml:"warning"`
	Text      string `toml:"text"`
	Dimmed    string `toml:"dimmed"`
}

// Config is the top-level configuration.
type Config struct {
	Theme         string              `toml:"theme"`
	Switcher      SwitcherConfig      `toml:"switcher"`
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	CustomThemes  []CustomTheme       `toml:"custom_theme,omitempty"`
}

// Default returns a Config populated with all default values.
func Default() *Config {
	return &Config{
		Theme: "synthwave",
		Switcher: SwitcherConfig{
			ActivationWord: "",
			SleepWord:      "sleep",
			SleepTimeSec:   30,
			MicFilter:      "",
		},
		Audio: AudioConfig{
			TargetSampleRate: 16000,
			CalibrationMs:    1000,
			EnergyThreshold:  0.01,
			DynamicEnergy:    true,
			PauseMs:          800,
			PhraseMinMs:      300,
			NonSpeakingMs:    500,
			PhraseLimitSec:   15,
			ChimeEnabled:     true,
		},
		Transcription: TranscriptionConfig{
			Provider:   "openai",
			BaseURL:    DefaultBaseURL,
			Model:      "whisper-1",
			TimeoutSec: 30,
		},
	}
}

// DefaultPath returns the default config file path (~/.config/micswitch/config.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "micswitch", "config.toml")
}

// Save writes the config as TOML to the given path on the OS filesystem.
func Save(path string, cfg *Config) error {
	return SaveFs(afero.NewOsFs(), path, cfg)
}

// SaveFs writes the config as TOML to path on fs, creating parent
// directories if needed. The write is atomic: data goes to a temporary
// file that is renamed into place.
func SaveFs(fs afero.Fs, path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(fs, dir, ".micswitch-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return err
	}
	return fs.Rename(tmpPath, path)
}

// Load reads the TOML config from path on the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads the TOML config from path on fs. If the file does not exist,
// it returns the default config without error.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
