package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAITranscribe(t *testing.T) {
	var receivedModel, receivedFormat, receivedLanguage, receivedAuth string
	var receivedFileData []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", 404)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
			http.Error(w, "method not allowed", 405)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad request", 400)
			return
		}

		receivedModel = r.FormValue("model")
		receivedFormat = r.FormValue("response_format")
		receivedLanguage = r.FormValue("language")
		receivedAuth = r.Header.Get("Authorization")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("get form file: %v", err)
			http.Error(w, "bad request", 400)
			return
		}
		defer file.Close()
		receivedFileData, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("  Switch please  \n"))
	}))
	defer server.Close()

	tr := NewOpenAI(server.URL+"/", "test-model", "sk-local", "en", 30, false, nil)
	result, err := tr.Transcribe(context.Background(), []byte("fake-wav-data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "Switch please" {
		t.Errorf("expected 'Switch please', got %q", result)
	}
	if receivedModel != "test-model" {
		t.Errorf("expected model 'test-model', got %q", receivedModel)
	}
	if receivedFormat != "text" {
		t.Errorf("expected format 'text', got %q", receivedFormat)
	}
	if receivedLanguage != "en" {
		t.Errorf("expected language 'en', got %q", receivedLanguage)
	}
	if receivedAuth != "Bearer sk-local" {
		t.Errorf("expected bearer auth, got %q", receivedAuth)
	}
	if string(receivedFileData) != "fake-wav-data" {
		t.Errorf("expected file data 'fake-wav-data', got %q", string(receivedFileData))
	}
}

func TestOpenAITranscribeEmptyIsNoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("   \n"))
	}))
	defer server.Close()

	tr := NewOpenAI(server.URL, "m", "", "", 30, false, nil)
	_, err := tr.Transcribe(context.Background(), []byte("data"))
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestOpenAITranscribeStatusIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr := NewOpenAI(server.URL, "bad-model", "", "", 30, false, nil)
	_, err := tr.Transcribe(context.Background(), []byte("data"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrNoSpeech) {
		t.Error("a service failure must not read as no speech")
	}
}

func TestOpenAITranscribeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tr := NewOpenAI(url, "m", "", "", 5, false, nil)
	if _, err := tr.Transcribe(context.Background(), []byte("data")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for a closed server, got %v", err)
	}
	if err := tr.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ping to fail with ErrUnavailable, got %v", err)
	}
}

func TestOpenAIPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tr := NewOpenAI(server.URL, "m", "", "", 5, false, nil)
	if err := tr.Ping(context.Background()); err != nil {
		t.Errorf("expected any HTTP answer to count as reachable, got %v", err)
	}
}
