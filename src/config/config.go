package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration. Non-secret settings
// come from a YAML file; API credentials come from the environment (see Env).
type Config struct {
	Server Server `yaml:"server"`
	Salon  Salon  `yaml:"salon"`
	Audio  Audio  `yaml:"audio"`
	Agent  Agent  `yaml:"agent"`
	Paths  Paths  `yaml:"paths"`

	Logging Logging `yaml:"logging"`
}

// Server contains the HTTP/WebSocket listener configuration
type Server struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Salon describes the business the agent answers for
type Salon struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	Phone    string `yaml:"phone"`
	// Business hours used by the calendar slot search, 24h clock
	OpenHour  int `yaml:"open_hour"`
	CloseHour int `yaml:"close_hour"`
}

// Audio contains segmentation parameters for the Twilio media stream.
// Twilio sends 20ms frames of mulaw 8kHz mono audio (160 bytes each).
type Audio struct {
	SpeechRMSThreshold float64 `yaml:"speech_rms_threshold"`
	SilenceFrames      int     `yaml:"silence_frames"`
	MinUtteranceBytes  int     `yaml:"min_utterance_bytes"`
	PlaybackChunkBytes int     `yaml:"playback_chunk_bytes"`
}

// Agent contains the reasoning and voice backend settings
type Agent struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	VoiceID     string  `yaml:"voice_id"`
	TTSModel    string  `yaml:"tts_model"`
	STTModel    string  `yaml:"stt_model"`
}

// Paths contains filesystem locations
type Paths struct {
	KnowledgeBase      string `yaml:"knowledge_base"`
	InteractionLog     string `yaml:"interaction_log"`
	ServiceAccountFile string `yaml:"service_account_file"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Env holds credentials loaded from the environment, never from YAML
type Env struct {
	OpenRouterAPIKey string
	ElevenLabsAPIKey string
	GoogleCalendarID string
}

// Default returns a configuration with the values the service ships with
func Default() *Config {
	return &Config{
		Server: Server{Port: 8000, Host: "0.0.0.0"},
		Salon: Salon{
			Name:      "Luxe Beauty Salon",
			Timezone:  "America/Los_Angeles",
			OpenHour:  9,
			CloseHour: 19,
		},
		Audio: Audio{
			SpeechRMSThreshold: 200,
			SilenceFrames:      30,
			MinUtteranceBytes:  3200,
			PlaybackChunkBytes: 8000,
		},
		Agent: Agent{
			Model:       "openai/gpt-4o",
			Temperature: 0.7,
			MaxTokens:   500,
			VoiceID:     "21m00Tcm4TlvDq8ikWAM",
			TTSModel:    "eleven_turbo_v2",
			STTModel:    "scribe_v1",
		},
		Paths: Paths{
			KnowledgeBase:      "knowledge_base/salon_data.json",
			InteractionLog:     "logs/interactions.jsonl",
			ServiceAccountFile: "credentials/service_account.json",
		},
		Logging: Logging{Level: "INFO"},
	}
}

// Load reads the YAML configuration file over the defaults and validates it
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads credentials from the environment. A .env file in the working
// directory, if present, overrides existing variables.
func LoadEnv() Env {
	_ = godotenv.Overload()
	return Env{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		GoogleCalendarID: os.Getenv("GOOGLE_CALENDAR_ID"),
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Salon.Validate(); err != nil {
		return fmt.Errorf("salon config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	return nil
}

// Validate validates the listener configuration
func (s *Server) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	return nil
}

// Validate validates the salon profile
func (s *Salon) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	if s.OpenHour < 0 || s.OpenHour > 23 {
		return fmt.Errorf("open_hour must be between 0 and 23, got %d", s.OpenHour)
	}
	if s.CloseHour <= s.OpenHour || s.CloseHour > 24 {
		return fmt.Errorf("close_hour must be after open_hour and at most 24, got %d", s.CloseHour)
	}
	return nil
}

// Validate validates the audio segmentation parameters
func (a *Audio) Validate() error {
	if a.SpeechRMSThreshold <= 0 {
		return fmt.Errorf("speech_rms_threshold must be positive, got %v", a.SpeechRMSThreshold)
	}
	if a.SilenceFrames < 1 {
		return fmt.Errorf("silence_frames must be at least 1, got %d", a.SilenceFrames)
	}
	if a.MinUtteranceBytes < 1 {
		return fmt.Errorf("min_utterance_bytes must be at least 1, got %d", a.MinUtteranceBytes)
	}
	if a.PlaybackChunkBytes < 160 {
		return fmt.Errorf("playback_chunk_bytes must be at least one frame (160), got %d", a.PlaybackChunkBytes)
	}
	return nil
}

// Validate validates the agent backend settings
func (a *Agent) Validate() error {
	if a.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", a.Temperature)
	}
	if a.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", a.MaxTokens)
	}
	if a.VoiceID == "" {
		return fmt.Errorf("voice_id cannot be empty")
	}
	return nil
}

// Location resolves the salon timezone. Validate guarantees it loads.
func (s *Salon) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
