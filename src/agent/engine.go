package agent

import (
	"context"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/interaction"
	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/metrics"
	"github.com/square-key-labs/saloncall-ai/src/services"
)

const (
	// maxHistory bounds the stored transcript; beyond it, the opening
	// context and the most recent exchanges are kept
	maxHistory  = 40
	historyHead = 4
	historyTail = 36

	// maxToolRounds bounds backend round trips within one turn
	maxToolRounds = 5

	backendTroubleReply = "I'm sorry, I'm having a bit of trouble right now. Could you repeat that?"
	stalledReply        = "I apologize for the delay. Let me help you with that. Could you tell me what you'd like to do?"
)

// Engine drives one conversation turn: it sends the transcript to the
// reasoning backend, executes any requested tools, and loops until the
// backend produces plain text or the round limit is hit.
type Engine struct {
	completer  services.Completer
	dispatcher *Dispatcher
	recorder   *interaction.Recorder
	metrics    *metrics.Metrics
	log        *logger.Logger

	salonName string
	timezone  string
	location  *time.Location
	now       func() time.Time
}

type EngineConfig struct {
	SalonName string
	Timezone  string
	Location  *time.Location
}

func NewEngine(completer services.Completer, dispatcher *Dispatcher, recorder *interaction.Recorder, m *metrics.Metrics, cfg EngineConfig) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		completer:  completer,
		dispatcher: dispatcher,
		recorder:   recorder,
		metrics:    m,
		log:        logger.WithPrefix("engine"),
		salonName:  cfg.SalonName,
		timezone:   cfg.Timezone,
		location:   loc,
		now:        time.Now,
	}
}

// Greeting returns the opening line for a new call
func (e *Engine) Greeting() string {
	return Greeting(e.salonName)
}

// trimHistory keeps the opening context plus the most recent messages when
// the transcript grows past maxHistory
func trimHistory(history []services.Message) []services.Message {
	if len(history) <= maxHistory {
		return history
	}
	trimmed := make([]services.Message, 0, historyHead+historyTail)
	trimmed = append(trimmed, history[:historyHead]...)
	trimmed = append(trimmed, history[len(history)-historyTail:]...)
	return trimmed
}

// Converse runs one turn of the conversation. It returns the agent's reply,
// the updated history, and the names of any tools that ran. On a backend
// failure or round exhaustion the reply is a spoken fallback and the
// history is returned unchanged, so a bad turn leaves no trace in the
// transcript.
func (e *Engine) Converse(ctx context.Context, history []services.Message, userText, callID string) (string, []services.Message, []string) {
	history = trimHistory(history)

	messages := make([]services.Message, 0, len(history)+2)
	messages = append(messages, services.SystemMessage(
		SystemPrompt(e.salonName, e.timezone, e.now().In(e.location))))
	messages = append(messages, history...)
	messages = append(messages, services.UserMessage(userText))

	tools := Tools()
	var toolsCalled []string

	for round := 0; round < maxToolRounds; round++ {
		completion, err := e.completer.Complete(ctx, messages, tools)
		if err != nil {
			e.log.Error("backend error on call %s: %v", callID, err)
			e.metrics.RecordStageError("llm_chat")
			e.recorder.CallError(callID, err.Error(), "llm_chat")
			return backendTroubleReply, history, toolsCalled
		}

		if len(completion.ToolCalls) > 0 {
			messages = append(messages, services.Message{
				Role:      services.RoleAssistant,
				Content:   completion.Content,
				ToolCalls: completion.ToolCalls,
			})
			for _, call := range completion.ToolCalls {
				toolsCalled = append(toolsCalled, call.Function.Name)
				result := e.dispatcher.Execute(ctx, call.Function.Name, call.Function.Arguments)
				messages = append(messages, services.ToolResultMessage(call.ID, result))
			}
			continue
		}

		reply := completion.Content
		updated := make([]services.Message, len(history), len(history)+2)
		copy(updated, history)
		updated = append(updated, services.UserMessage(userText), services.AssistantMessage(reply))

		e.recorder.Exchange(callID, userText, reply, toolsCalled)
		return reply, updated, toolsCalled
	}

	e.log.Warn("call %s hit the tool round limit", callID)
	e.metrics.RecordToolRoundLimit()
	return stalledReply, history, toolsCalled
}
