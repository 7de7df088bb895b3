package call

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/square-key-labs/saloncall-ai/src/agent"
	"github.com/square-key-labs/saloncall-ai/src/calendar"
	"github.com/square-key-labs/saloncall-ai/src/interaction"
	"github.com/square-key-labs/saloncall-ai/src/kb"
	"github.com/square-key-labs/saloncall-ai/src/services"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct {
	err   error
	calls []string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + text), nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []services.Message, tools []services.Tool) (*services.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Completion{Content: f.reply}, nil
}

type nilScheduler struct{}

func (nilScheduler) AvailableSlots(ctx context.Context, date string, durationMinutes int, stylist string) ([]calendar.Slot, error) {
	return nil, nil
}
func (nilScheduler) CreateAppointment(ctx context.Context, req calendar.CreateRequest) (*calendar.Appointment, error) {
	return nil, nil
}
func (nilScheduler) FindAppointments(ctx context.Context, name, phone string) ([]calendar.Appointment, error) {
	return nil, nil
}
func (nilScheduler) UpdateAppointment(ctx context.Context, eventID, date, startTime string) (*calendar.Appointment, error) {
	return nil, nil
}
func (nilScheduler) DeleteAppointment(ctx context.Context, eventID string) (*calendar.Appointment, error) {
	return nil, nil
}

type nilKnowledge struct{}

func (nilKnowledge) Search(ctx context.Context, query string, topK int) ([]kb.Result, error) {
	return nil, nil
}
func (nilKnowledge) ServiceByName(name string) *kb.Service { return nil }

func newTestOrchestrator(t *testing.T, completer services.Completer, tr *fakeTranscriber, sy *fakeSynthesizer) *Orchestrator {
	t.Helper()
	recorder, err := interaction.New(filepath.Join(t.TempDir(), "interactions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	dispatcher := agent.NewDispatcher(nilScheduler{}, nilKnowledge{}, nil)
	engine := agent.NewEngine(completer, dispatcher, recorder, nil, agent.EngineConfig{
		SalonName: "Luxe Hair Studio",
		Timezone:  "America/Los_Angeles",
	})
	return NewOrchestrator(engine, tr, sy, recorder, nil)
}

func TestStartCall(t *testing.T) {
	sy := &fakeSynthesizer{}
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"}, &fakeTranscriber{}, sy)

	greeting, audio := o.StartCall(context.Background(), "CA1", "+15551234")
	if !strings.Contains(greeting, "Welcome to Luxe Hair Studio") {
		t.Errorf("greeting = %q", greeting)
	}
	if len(audio) == 0 {
		t.Error("greeting audio is empty")
	}
	if o.ActiveCalls() != 1 {
		t.Errorf("active calls = %d", o.ActiveCalls())
	}
	s := o.Session("CA1")
	if s == nil || len(s.History) != 1 || s.History[0].Role != services.RoleAssistant {
		t.Error("greeting must be recorded in history")
	}
}

func TestStartCallTTSFailure(t *testing.T) {
	sy := &fakeSynthesizer{err: errors.New("tts down")}
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"}, &fakeTranscriber{}, sy)

	greeting, audio := o.StartCall(context.Background(), "CA1", "")
	if greeting == "" {
		t.Error("greeting text must survive a TTS failure")
	}
	if audio != nil {
		t.Error("audio must be empty when TTS fails")
	}
	if o.Session("CA1") == nil {
		t.Error("session must exist despite TTS failure")
	}
}

func TestProcessAudioFullTurn(t *testing.T) {
	sy := &fakeSynthesizer{}
	o := newTestOrchestrator(t, &fakeCompleter{reply: "We close at 7 PM."},
		&fakeTranscriber{text: "when do you close"}, sy)
	o.StartCall(context.Background(), "CA1", "")

	reply, audio := o.ProcessAudio(context.Background(), "CA1", make([]byte, 3200))
	if reply != "We close at 7 PM." {
		t.Errorf("reply = %q", reply)
	}
	if string(audio) != "audio:We close at 7 PM." {
		t.Errorf("audio = %q", audio)
	}

	s := o.Session("CA1")
	// greeting + user + assistant
	if len(s.History) != 3 {
		t.Errorf("history length = %d, want 3", len(s.History))
	}
}

func TestProcessAudioUnknownCall(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"}, &fakeTranscriber{text: "hi"}, &fakeSynthesizer{})
	reply, audio := o.ProcessAudio(context.Background(), "CA-none", make([]byte, 3200))
	if reply != "" || audio != nil {
		t.Errorf("unknown call produced %q / %v", reply, audio)
	}
}

func TestProcessAudioSTTFailure(t *testing.T) {
	sy := &fakeSynthesizer{}
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"},
		&fakeTranscriber{err: errors.New("stt down")}, sy)
	o.StartCall(context.Background(), "CA1", "")

	reply, _ := o.ProcessAudio(context.Background(), "CA1", make([]byte, 3200))
	if !strings.Contains(reply, "didn't catch that") {
		t.Errorf("reply = %q", reply)
	}
	s := o.Session("CA1")
	if len(s.History) != 1 {
		t.Errorf("failed turn must not grow history, got %d", len(s.History))
	}
}

func TestProcessAudioEmptyTranscript(t *testing.T) {
	sy := &fakeSynthesizer{}
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"}, &fakeTranscriber{text: ""}, sy)
	o.StartCall(context.Background(), "CA1", "")
	sy.calls = nil

	reply, audio := o.ProcessAudio(context.Background(), "CA1", make([]byte, 3200))
	if reply != "" || audio != nil {
		t.Errorf("empty transcript produced %q / %v", reply, audio)
	}
	if len(sy.calls) != 0 {
		t.Errorf("empty transcript must not reach TTS; calls = %v", sy.calls)
	}
}

func TestProcessAudioBackendFailure(t *testing.T) {
	sy := &fakeSynthesizer{}
	o := newTestOrchestrator(t, &fakeCompleter{err: errors.New("backend down")},
		&fakeTranscriber{text: "book a haircut"}, sy)
	o.StartCall(context.Background(), "CA1", "")

	reply, _ := o.ProcessAudio(context.Background(), "CA1", make([]byte, 3200))
	// the engine swallows backend errors into its own spoken fallback
	if !strings.Contains(reply, "trouble right now") {
		t.Errorf("reply = %q", reply)
	}
	s := o.Session("CA1")
	if len(s.History) != 1 {
		t.Errorf("failed turn must leave history at the greeting only, got %d", len(s.History))
	}
}

func TestProcessTextCreatesSession(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCompleter{reply: "Sure!"}, &fakeTranscriber{}, &fakeSynthesizer{})

	reply, audio := o.ProcessText(context.Background(), "chat-1", "do you do balayage")
	if reply != "Sure!" {
		t.Errorf("reply = %q", reply)
	}
	if len(audio) == 0 {
		t.Error("text turns still produce audio")
	}
	if o.Session("chat-1") == nil {
		t.Error("session must be created on demand")
	}
}

func TestEndCall(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCompleter{reply: "x"}, &fakeTranscriber{}, &fakeSynthesizer{})
	o.StartCall(context.Background(), "CA1", "")

	o.EndCall("CA1")
	if o.ActiveCalls() != 0 {
		t.Errorf("active calls = %d after end", o.ActiveCalls())
	}
	if o.Session("CA1") != nil {
		t.Error("session must be removed")
	}
	// second end is a no-op
	o.EndCall("CA1")
}
