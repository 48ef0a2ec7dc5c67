package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAPI implements Transcriber with the go-openai client, for hosted
// OpenAI (or any server that speaks its JSON transcription response).
type OpenAIAPI struct {
	client   *openai.Client
	baseURL  string
	model    string
	language string
	logger   *log.Logger
}

// NewOpenAIAPI creates a go-openai backed transcriber. An empty baseURL
// keeps the client's default (api.openai.com).
func NewOpenAIAPI(baseURL, model, apiKey, language string, timeoutSec int, logger *log.Logger) *OpenAIAPI {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(timeoutSec) * time.Second,
	}
	return &OpenAIAPI{
		client:   openai.NewClientWithConfig(clientConfig),
		baseURL:  clientConfig.BaseURL,
		model:    model,
		language: language,
		logger:   logger,
	}
}

// Transcribe uploads WAV data through CreateTranscription.
func (o *OpenAIAPI) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	if o.logger != nil {
		o.logger.Printf("transcribe request: CreateTranscription %s model=%s wav_size=%d", o.baseURL, o.model, len(wavData))
	}

	start := time.Now()
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wavData),
		Language: o.language,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", unavailable("create transcription", err)
	}

	if o.logger != nil {
		o.logger.Printf("transcribe response: latency=%s", time.Since(start).Round(time.Millisecond))
	}
	return result(resp.Text, o.logger)
}
