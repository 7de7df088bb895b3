package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/agent"
	"github.com/square-key-labs/saloncall-ai/src/calendar"
	"github.com/square-key-labs/saloncall-ai/src/call"
	"github.com/square-key-labs/saloncall-ai/src/config"
	"github.com/square-key-labs/saloncall-ai/src/interaction"
	"github.com/square-key-labs/saloncall-ai/src/kb"
	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/metrics"
	"github.com/square-key-labs/saloncall-ai/src/services/elevenlabs"
	"github.com/square-key-labs/saloncall-ai/src/services/openrouter"
	"github.com/square-key-labs/saloncall-ai/src/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	env := config.LoadEnv()
	location := cfg.Salon.Location()

	m := metrics.New(nil)

	recorder, err := interaction.New(cfg.Paths.InteractionLog)
	if err != nil {
		logger.Error("interaction log: %v", err)
		os.Exit(1)
	}

	knowledge := kb.New(cfg.Paths.KnowledgeBase)
	if err := knowledge.Load(context.Background()); err != nil {
		logger.Error("knowledge base: %v", err)
		os.Exit(1)
	}
	defer knowledge.Close()

	scheduler := calendar.New(calendar.Config{
		CalendarID:      env.GoogleCalendarID,
		CredentialsFile: cfg.Paths.ServiceAccountFile,
		Location:        location,
		OpenHour:        cfg.Salon.OpenHour,
		CloseHour:       cfg.Salon.CloseHour,
	})
	// calls can still answer questions without a calendar, so a failed
	// connect downgrades booking tools rather than refusing to start
	if err := scheduler.Connect(context.Background()); err != nil {
		logger.Warn("calendar unavailable, appointment tools will report errors: %v", err)
	}

	completer := openrouter.New(openrouter.Config{
		APIKey:      env.OpenRouterAPIKey,
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
		MaxTokens:   cfg.Agent.MaxTokens,
	})

	voice := elevenlabs.New(elevenlabs.Config{
		APIKey:   env.ElevenLabsAPIKey,
		VoiceID:  cfg.Agent.VoiceID,
		TTSModel: cfg.Agent.TTSModel,
		STTModel: cfg.Agent.STTModel,
	})

	dispatcher := agent.NewDispatcher(scheduler, knowledge, m)
	engine := agent.NewEngine(completer, dispatcher, recorder, m, agent.EngineConfig{
		SalonName: cfg.Salon.Name,
		Timezone:  cfg.Salon.Timezone,
		Location:  location,
	})
	orchestrator := call.NewOrchestrator(engine, voice, voice, recorder, m)

	server := transport.NewServer(cfg, orchestrator, m)
	if err := server.Start(); err != nil {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
	logger.Info("%s answering on port %d", cfg.Salon.Name, cfg.Server.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}
