// Package call ties the voice, reasoning, and bookkeeping services into a
// per-call conversation loop.
package call

import (
	"context"
	"fmt"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/agent"
	"github.com/square-key-labs/saloncall-ai/src/interaction"
	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/metrics"
	"github.com/square-key-labs/saloncall-ai/src/services"
	"github.com/square-key-labs/saloncall-ai/src/session"
)

const (
	sttFailedReply = "I'm sorry, I didn't catch that. Could you say that again?"
	llmFailedReply = "I apologize, I'm experiencing a brief issue. Could you repeat what you said?"
)

// Orchestrator manages the lifecycle of inbound calls
type Orchestrator struct {
	sessions    *session.Store
	engine      *agent.Engine
	transcriber services.Transcriber
	synthesizer services.Synthesizer
	recorder    *interaction.Recorder
	metrics     *metrics.Metrics
	log         *logger.Logger
}

func NewOrchestrator(engine *agent.Engine, transcriber services.Transcriber, synthesizer services.Synthesizer, recorder *interaction.Recorder, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		sessions:    session.NewStore(),
		engine:      engine,
		transcriber: transcriber,
		synthesizer: synthesizer,
		recorder:    recorder,
		metrics:     m,
		log:         logger.WithPrefix("call"),
	}
}

// synthesize renders text to audio; a synthesis failure is logged and
// yields empty audio rather than failing the turn
func (o *Orchestrator) synthesize(ctx context.Context, callID, text string) []byte {
	audio, err := o.synthesizer.Synthesize(ctx, text)
	if err != nil {
		o.log.Error("TTS error on call %s: %v", callID, err)
		o.metrics.RecordStageError("tts")
		o.recorder.CallError(callID, err.Error(), "tts")
		return nil
	}
	return audio
}

// StartCall opens a session and returns the greeting to play to the
// caller
func (o *Orchestrator) StartCall(ctx context.Context, callID, callerPhone string) (string, []byte) {
	s := session.NewCallSession(callID, callerPhone)
	o.sessions.Add(s)
	o.metrics.RecordCallStarted()
	o.recorder.CallStarted(callID, callerPhone)

	greeting := o.engine.Greeting()
	o.log.Info("call started: %s | greeting: %s", callID, greeting)

	audio := o.synthesize(ctx, callID, greeting)

	s.History = append(s.History, services.AssistantMessage(greeting))
	return greeting, audio
}

// ProcessAudio runs one full conversation turn from a caller utterance:
// transcription, reasoning, then synthesis. It always returns something
// speakable on failure; only silence (an empty transcript or an unknown
// call) returns empty results.
func (o *Orchestrator) ProcessAudio(ctx context.Context, callID string, utterance []byte) (string, []byte) {
	s, ok := o.sessions.Get(callID)
	if !ok {
		o.log.Warn("no active session for call %s", callID)
		return "", nil
	}
	started := time.Now()
	o.metrics.RecordUtterance()

	customerText, err := o.transcriber.Transcribe(ctx, utterance)
	if err != nil {
		o.log.Error("STT error on call %s: %v", callID, err)
		o.metrics.RecordStageError("stt")
		o.recorder.CallError(callID, err.Error(), "stt")
		return sttFailedReply, o.synthesize(ctx, callID, sttFailedReply)
	}
	if customerText == "" {
		return "", nil
	}
	o.log.Info("customer (%s): %s", callID, customerText)

	reply, updated, toolsCalled, err := o.converse(ctx, s, customerText, callID)
	if err != nil {
		o.log.Error("conversation error on call %s: %v", callID, err)
		o.metrics.RecordStageError("llm")
		o.recorder.CallError(callID, err.Error(), "llm")
		return llmFailedReply, o.synthesize(ctx, callID, llmFailedReply)
	}
	// a turn can outlive its call; results for a torn-down session are
	// discarded
	if s.Active() {
		s.History = updated
	}
	o.log.Info("agent (%s): %s", callID, reply)

	audio := o.synthesize(ctx, callID, reply)

	elapsed := time.Since(started)
	o.metrics.RecordTurn(elapsed.Seconds())
	o.log.Info("turn processed in %.2fs | tools: %v", elapsed.Seconds(), toolsCalled)
	return reply, audio
}

// converse wraps the engine so a panic in tool plumbing surfaces as an
// error instead of killing the media loop
func (o *Orchestrator) converse(ctx context.Context, s *session.CallSession, text, callID string) (reply string, updated []services.Message, tools []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation panic: %v", r)
		}
	}()
	reply, updated, tools = o.engine.Converse(ctx, s.History, text, callID)
	return reply, updated, tools, nil
}

// ProcessText handles a typed message, creating a session on demand. It
// exists for the text chat endpoint and for exercising the conversation
// path without audio.
func (o *Orchestrator) ProcessText(ctx context.Context, callID, text string) (string, []byte) {
	s, ok := o.sessions.Get(callID)
	if !ok {
		s = session.NewCallSession(callID, "")
		o.sessions.Add(s)
	}

	reply, updated, _ := o.engine.Converse(ctx, s.History, text, callID)
	s.History = updated

	return reply, o.synthesize(ctx, callID, reply)
}

// EndCall closes a session. Safe to call more than once; only the first
// call records the ending.
func (o *Orchestrator) EndCall(callID string) {
	s := o.sessions.Remove(callID)
	if s == nil {
		return
	}
	duration, ok := s.End()
	if !ok {
		return
	}
	exchanges := len(s.History)
	o.metrics.RecordCallEnded(duration.Seconds())
	o.recorder.CallEnded(callID, duration,
		fmt.Sprintf("Call lasted %.0fs with %d exchanges", duration.Seconds(), exchanges))
	o.log.Info("call ended: %s | duration: %.0fs | exchanges: %d", callID, duration.Seconds(), exchanges)
}

// Session returns the live session for a call, or nil
func (o *Orchestrator) Session(callID string) *session.CallSession {
	s, _ := o.sessions.Get(callID)
	return s
}

// ActiveCalls reports how many calls are live
func (o *Orchestrator) ActiveCalls() int {
	return o.sessions.Count()
}
