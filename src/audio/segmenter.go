package audio

import (
	"sync"

	"github.com/square-key-labs/saloncall-ai/src/logger"
)

// SegmenterConfig holds the voice activity thresholds for one call
type SegmenterConfig struct {
	// SpeechRMSThreshold is the minimum RMS energy (16-bit PCM scale) for a
	// frame to count as speech
	SpeechRMSThreshold float64
	// SilenceFrames is the number of consecutive sub-threshold frames after
	// speech that ends an utterance. At 20ms per frame, 30 is roughly 600ms.
	SilenceFrames int
	// MinUtteranceBytes is the minimum buffered audio required before an
	// utterance may be emitted
	MinUtteranceBytes int
}

// DefaultSegmenterConfig returns the thresholds tuned for Twilio's
// 8kHz mulaw media stream
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SpeechRMSThreshold: 200,
		SilenceFrames:      30,
		MinUtteranceBytes:  3200,
	}
}

// Segmenter turns a live stream of mulaw audio frames into discrete
// utterances using energy-based voice activity detection.
//
// While suppressed, incoming frames are discarded entirely so the agent never
// hears its own playback and never starts a second turn while one is in
// flight. Suppression is set by the Segmenter itself on emission and cleared
// by Resume once playback finishes (or the turn produced no audio).
type Segmenter struct {
	config SegmenterConfig

	mu           sync.Mutex
	buffer       []byte
	speaking     bool
	silenceCount int
	suppressed   bool
}

// NewSegmenter creates a Segmenter with the given thresholds
func NewSegmenter(config SegmenterConfig) *Segmenter {
	return &Segmenter{config: config}
}

// Push feeds one transport frame to the segmenter. It returns a complete
// utterance and true when a speech run has ended in sufficient silence.
func (s *Segmenter) Push(frame []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.suppressed {
		return nil, false
	}

	// A frame that fails to decode contributes zero energy but its bytes are
	// still kept so the transcription sees the full signal.
	rms := MulawRMS(frame)
	s.buffer = append(s.buffer, frame...)

	if rms >= s.config.SpeechRMSThreshold {
		s.speaking = true
		s.silenceCount = 0
	} else if s.speaking {
		s.silenceCount++
	}

	if s.speaking && s.silenceCount >= s.config.SilenceFrames && len(s.buffer) >= s.config.MinUtteranceBytes {
		utterance := s.buffer
		s.buffer = nil
		s.speaking = false
		s.silenceCount = 0
		s.suppressed = true
		logger.Debug("[Segmenter] Utterance complete: %d bytes", len(utterance))
		return utterance, true
	}

	return nil, false
}

// Suppress discards incoming frames until Resume is called
func (s *Segmenter) Suppress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed = true
}

// Suppressed reports whether incoming audio is currently being discarded
func (s *Segmenter) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// Resume clears suppression and resets segmentation state so the next frame
// starts a fresh utterance
func (s *Segmenter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed = false
	s.reset()
}

// Reset discards any partial buffer without touching suppression. Called on
// stream end; a partial utterance is never transcribed.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Segmenter) reset() {
	s.buffer = nil
	s.speaking = false
	s.silenceCount = 0
}

// BufferedBytes returns the current accumulated buffer length
func (s *Segmenter) BufferedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}
