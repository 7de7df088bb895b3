package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVoice(t *testing.T, handler http.HandlerFunc) *Voice {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:     "test-key",
		VoiceID:    "21m00Tcm4TlvDq8ikWAM",
		TTSModel:   "eleven_turbo_v2",
		STTModel:   "scribe_v1",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestSynthesize(t *testing.T) {
	want := []byte{0x7F, 0x7F, 0x00, 0xFF}
	v := newTestVoice(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "ulaw_8000" {
			t.Errorf("output_format = %s", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %s", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["text"] != "Hello caller" {
			t.Errorf("text = %v", body["text"])
		}
		if body["model_id"] != "eleven_turbo_v2" {
			t.Errorf("model_id = %v", body["model_id"])
		}
		w.Write(want)
	})

	got, err := v.Synthesize(context.Background(), "Hello caller")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("audio = %v, want %v", got, want)
	}
}

func TestSynthesizeError(t *testing.T) {
	v := newTestVoice(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	})
	if _, err := v.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestTranscribe(t *testing.T) {
	v := newTestVoice(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id = %s", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "utterance.wav" {
			t.Errorf("filename = %s", header.Filename)
		}
		wav, err := io.ReadAll(file)
		if err != nil {
			t.Fatal(err)
		}
		if len(wav) < 44 || string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
			t.Error("uploaded audio is not a WAV container")
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "  I'd like a haircut.  "})
	})

	mulaw := make([]byte, 1600)
	text, err := v.Transcribe(context.Background(), mulaw)
	if err != nil {
		t.Fatal(err)
	}
	if text != "I'd like a haircut." {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
}

func TestTranscribeError(t *testing.T) {
	v := newTestVoice(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusUnprocessableEntity)
	})
	if _, err := v.Transcribe(context.Background(), make([]byte, 160)); err == nil {
		t.Fatal("expected error on 422")
	}
}
