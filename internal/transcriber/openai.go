package transcriber

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// OpenAI implements Transcriber using the OpenAI-compatible
// POST /v1/audio/transcriptions endpoint with a plain-text response.
type OpenAI struct {
	baseURL    string
	model      string
	apiKey     string
	language   string
	timeoutSec int
	client     *http.Client
	logger     *log.Logger
}

// NewOpenAI creates an OpenAI-compatible transcriber.
func NewOpenAI(baseURL, model, apiKey, language string, timeoutSec int, tlsSkipVerify bool, logger *log.Logger) *OpenAI {
	client := &http.Client{}
	if tlsSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // user-configured opt-in for self-signed certs
		}
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		language:   language,
		timeoutSec: timeoutSec,
		client:     client,
		logger:     logger,
	}
}

// Ping checks if the transcription backend is reachable.
func (o *OpenAI) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := o.client.Do(req) //nolint:gosec // URL from user config
	if err != nil {
		return unavailable("ping", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Transcribe sends WAV data to the endpoint and returns the text.
func (o *OpenAI) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.timeoutSec)*time.Second)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("write wav data: %w", err)
	}

	fields := [][2]string{{"model", o.model}, {"response_format", "text"}}
	if o.language != "" {
		fields = append(fields, [2]string{"language", o.language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := o.baseURL + "/v1/audio/transcriptions"
	if o.logger != nil {
		o.logger.Printf("transcribe request: POST %s wav_size=%d", url, len(wavData))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	start := time.Now()
	resp, err := o.client.Do(req) //nolint:gosec // URL from user config
	if err != nil {
		return "", unavailable("send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable("read response", err)
	}

	if o.logger != nil {
		o.logger.Printf("transcribe response: status=%d body_size=%d latency=%s", resp.StatusCode, len(respBody), time.Since(start).Round(time.Millisecond))
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return result(string(respBody), o.logger)
}
