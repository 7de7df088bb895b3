package transport

import "encoding/base64"

// ResponseEndMark names the mark the media server echoes back once it has
// finished playing our audio. Listening stays suppressed until it arrives.
const ResponseEndMark = "response_end"

// DefaultPlaybackChunkBytes is about one second of mulaw 8kHz audio
const DefaultPlaybackChunkBytes = 8000

// MessageWriter is the outbound half of a media stream connection
type MessageWriter interface {
	WriteJSON(v any) error
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type markPayload struct {
	Name string `json:"name"`
}

type streamMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid"`
	Media     *mediaPayload `json:"media,omitempty"`
	Mark      *markPayload  `json:"mark,omitempty"`
}

// SendAudio plays mulaw audio to the caller in media messages of at most
// chunkBytes, then queues the response-end mark so the far end tells us
// when playback is done. Empty audio sends no media and no mark.
func SendAudio(w MessageWriter, streamSid string, mulaw []byte, chunkBytes int) error {
	if len(mulaw) == 0 {
		return nil
	}
	if chunkBytes <= 0 {
		chunkBytes = DefaultPlaybackChunkBytes
	}
	for i := 0; i < len(mulaw); i += chunkBytes {
		end := i + chunkBytes
		if end > len(mulaw) {
			end = len(mulaw)
		}
		msg := streamMessage{
			Event:     "media",
			StreamSid: streamSid,
			Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw[i:end])},
		}
		if err := w.WriteJSON(msg); err != nil {
			return err
		}
	}
	return w.WriteJSON(streamMessage{
		Event:     "mark",
		StreamSid: streamSid,
		Mark:      &markPayload{Name: ResponseEndMark},
	})
}
