// Package elevenlabs provides speech synthesis and transcription over the
// ElevenLabs REST API, tuned for 8kHz mulaw telephony audio.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/audio"
	"github.com/square-key-labs/saloncall-ai/src/logger"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1"

// Config holds ElevenLabs connection settings
type Config struct {
	APIKey   string
	VoiceID  string // e.g., "21m00Tcm4TlvDq8ikWAM" (Rachel)
	TTSModel string // e.g., "eleven_turbo_v2"
	STTModel string // e.g., "scribe_v1"

	// BaseURL and HTTPClient override the endpoint, used by tests
	BaseURL    string
	HTTPClient *http.Client
}

// Voice is a combined synthesizer and transcriber
type Voice struct {
	apiKey     string
	voiceID    string
	ttsModel   string
	sttModel   string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func New(config Config) *Voice {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Voice{
		apiKey:     config.APIKey,
		voiceID:    config.VoiceID,
		ttsModel:   config.TTSModel,
		sttModel:   config.STTModel,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		log:        logger.WithPrefix("elevenlabs"),
	}
}

// Synthesize renders text to mulaw 8kHz audio ready for the telephony
// stream
func (v *Voice) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": v.ttsModel,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=ulaw_8000", v.baseURL, v.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("xi-api-key", v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs TTS error (status %d): %s", resp.StatusCode, string(detail))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	v.log.Debug("synthesized %d bytes for %d chars", len(out), len(text))
	return out, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe converts mulaw 8kHz caller audio to text. The audio is
// wrapped in a WAV container because the transcription endpoint does not
// accept raw mulaw.
func (v *Voice) Transcribe(ctx context.Context, mulaw []byte) (string, error) {
	wav := audio.MulawToWAV(mulaw, 8000)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	if err := writer.WriteField("model_id", v.sttModel); err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/speech-to-text", &buf)
	if err != nil {
		return "", fmt.Errorf("build stt request: %w", err)
	}
	req.Header.Set("xi-api-key", v.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("elevenlabs STT error (status %d): %s", resp.StatusCode, string(detail))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	text := strings.TrimSpace(parsed.Text)
	v.log.Debug("transcribed %d bytes to %d chars", len(mulaw), len(text))
	return text, nil
}
