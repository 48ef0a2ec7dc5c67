package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command runs an external recognizer through sh. Each {input} in the
// command line becomes the path of a temporary WAV file holding the
// utterance, and stdout is the transcript.
type Command struct {
	line    string
	timeout time.Duration
	logger  *log.Logger
}

// NewCommand creates a command-based transcriber.
func NewCommand(line string, timeoutSec int, logger *log.Logger) *Command {
	return &Command{
		line:    line,
		timeout: time.Duration(timeoutSec) * time.Second,
		logger:  logger,
	}
}

// Transcribe runs the command on wavData. Empty stdout means no speech; a
// failing or timed-out command means the recognizer is unavailable, and
// its stderr is carried in the error.
func (c *Command) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	path, cleanup, err := stageWAV(wavData)
	if err != nil {
		return "", err
	}
	defer cleanup()

	line := strings.ReplaceAll(c.line, "{input}", path)
	if strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("empty command after substitution")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Stderr = &stderr

	if c.logger != nil {
		c.logger.Printf("transcribe command: %s wav_size=%d", line, len(wavData))
	}
	start := time.Now()
	out, err := cmd.Output()
	if c.logger != nil {
		c.logger.Printf("transcribe response: output_size=%d latency=%s", len(out), time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", unavailable("run command", err)
	}
	return result(string(out), c.logger)
}

// stageWAV writes wavData to a temporary file for the command to read.
func stageWAV(wavData []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "micswitch-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	_, werr := f.Write(wavData)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", errors.Join(werr, cerr))
	}
	return path, cleanup, nil
}
