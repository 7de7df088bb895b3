package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

const twimlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s://%s/voice/stream">
            <Parameter name="call_sid" value="%s" />
            <Parameter name="caller" value="%s" />
        </Stream>
    </Connect>
</Response>`

// handleIncoming answers Twilio's incoming-call webhook with TwiML that
// connects the call to our media stream endpoint
func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callSid := r.FormValue("CallSid")
	if callSid == "" {
		callSid = "unknown"
	}
	caller := r.FormValue("From")
	if caller == "" {
		caller = "unknown"
	}
	s.log.Info("incoming call: %s from %s", callSid, caller)

	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, twimlTemplate, scheme, r.Host, callSid, caller)
}

type chatRequest struct {
	CallSid string `json:"call_sid"`
	Message string `json:"message"`
}

type chatResponse struct {
	CallSid       string `json:"call_sid"`
	AgentResponse string `json:"agent_response"`
}

// handleChat is a text endpoint for exercising the agent without a phone
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"no message provided"}`, http.StatusBadRequest)
		return
	}
	if req.CallSid == "" {
		req.CallSid = "test-session"
	}

	reply, _ := s.handler.ProcessText(r.Context(), req.CallSid, req.Message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		CallSid:       req.CallSid,
		AgentResponse: reply,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"active_calls": s.handler.ActiveCalls(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "saloncall-ai",
		"salon":   s.cfg.Salon.Name,
		"endpoints": []string{
			"POST /voice/incoming",
			"GET /voice/stream",
			"POST /voice/chat",
			"GET /health",
			"GET /metrics",
		},
	})
}
