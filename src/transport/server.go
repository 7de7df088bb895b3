// Package transport carries calls over Twilio: webhook handlers answer the
// phone with TwiML and a WebSocket endpoint runs the media stream for each
// live call.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/saloncall-ai/src/audio"
	"github.com/square-key-labs/saloncall-ai/src/config"
	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/metrics"
	"github.com/square-key-labs/saloncall-ai/src/session"
)

// CallHandler is the per-call pipeline behind the transport
type CallHandler interface {
	StartCall(ctx context.Context, callID, callerPhone string) (string, []byte)
	ProcessAudio(ctx context.Context, callID string, utterance []byte) (string, []byte)
	ProcessText(ctx context.Context, callID, text string) (string, []byte)
	EndCall(callID string)
	Session(callID string) *session.CallSession
	ActiveCalls() int
}

// Server hosts the Twilio webhooks and the media stream endpoint
type Server struct {
	cfg      *config.Config
	handler  CallHandler
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	server   *http.Server
	log      *logger.Logger
}

func NewServer(cfg *config.Config, handler CallHandler, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.WithPrefix("transport"),
	}
}

// Routes builds the HTTP handler with every endpoint mounted
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice/incoming", s.handleIncoming)
	mux.HandleFunc("GET /voice/stream", s.handleStream)
	mux.HandleFunc("POST /voice/chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.Handle("GET /metrics", metricsHandler())
	return mux
}

// Start begins serving in a background goroutine
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: s.Routes(),
	}
	go func() {
		s.log.Info("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the listener, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// connWriter serializes writes to a WebSocket connection. The read loop and
// turn goroutines both send, and gorilla allows one concurrent writer.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

type inboundStart struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type inboundMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid"`
	Start     *inboundStart `json:"start"`
	Media     *mediaPayload `json:"media"`
	Mark      *markPayload  `json:"mark"`
}

// handleStream runs the media stream for one call. Inbound frames feed the
// segmenter; a completed utterance kicks off a turn in its own goroutine so
// the read loop keeps draining frames, and the segmenter stays suppressed
// until the response-end mark comes back.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	s.log.Info("media stream connected from %s", r.RemoteAddr)

	writer := &connWriter{conn: conn}
	seg := audio.NewSegmenter(audio.SegmenterConfig{
		SpeechRMSThreshold: s.cfg.Audio.SpeechRMSThreshold,
		SilenceFrames:      s.cfg.Audio.SilenceFrames,
		MinUtteranceBytes:  s.cfg.Audio.MinUtteranceBytes,
	})
	// deaf until the call is opened and the greeting has played
	seg.Suppress()

	var (
		streamSid string
		callSid   string
	)
	defer func() {
		if callSid != "" {
			s.handler.EndCall(callSid)
		}
	}()

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("media stream read error: %v", err)
			} else {
				s.log.Info("media stream disconnected: %s", callSid)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn("unparseable stream message: %v", err)
			continue
		}

		switch msg.Event {
		case "start":
			if msg.Start == nil {
				continue
			}
			streamSid = msg.Start.StreamSid
			callSid = msg.Start.CustomParameters["call_sid"]
			if callSid == "" {
				callSid = msg.Start.CallSid
			}
			caller := msg.Start.CustomParameters["caller"]
			s.log.Info("stream started: %s | call: %s | caller: %s", streamSid, callSid, caller)

			go s.playGreeting(ctx, writer, seg, streamSid, callSid, caller)

		case "media":
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				s.log.Warn("bad media payload: %v", err)
				continue
			}
			if utterance, ok := seg.Push(frame); ok {
				s.log.Info("processing %d bytes of audio from %s", len(utterance), callSid)
				go s.runTurn(ctx, writer, seg, streamSid, callSid, utterance)
			}

		case "mark":
			if msg.Mark != nil && msg.Mark.Name == ResponseEndMark {
				// playback finished; listen for the caller again
				seg.Resume()
			}

		case "stop":
			s.log.Info("stream stopped: %s", streamSid)
			if callSid != "" {
				s.handler.EndCall(callSid)
				callSid = ""
			}
			return
		}
	}
}

// playGreeting opens the call and plays the greeting. If there is no audio
// to play the segmenter resumes immediately; otherwise the response-end
// mark resumes it.
func (s *Server) playGreeting(ctx context.Context, writer *connWriter, seg *audio.Segmenter, streamSid, callSid, caller string) {
	_, greetingAudio := s.handler.StartCall(ctx, callSid, caller)
	if len(greetingAudio) == 0 {
		seg.Resume()
		return
	}
	if err := SendAudio(writer, streamSid, greetingAudio, s.cfg.Audio.PlaybackChunkBytes); err != nil {
		s.log.Error("failed to play greeting on %s: %v", callSid, err)
		seg.Resume()
	}
}

// runTurn processes one utterance off the read loop
func (s *Server) runTurn(ctx context.Context, writer *connWriter, seg *audio.Segmenter, streamSid, callSid string, utterance []byte) {
	_, responseAudio := s.handler.ProcessAudio(ctx, callSid, utterance)
	if len(responseAudio) == 0 {
		// nothing to play, so no mark will come back
		seg.Resume()
		return
	}
	if err := SendAudio(writer, streamSid, responseAudio, s.cfg.Audio.PlaybackChunkBytes); err != nil {
		s.log.Error("failed to play response on %s: %v", callSid, err)
		seg.Resume()
	}
}
