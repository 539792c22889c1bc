package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sanchobuendia/tickets/internal/agent"
	apiPkg "github.com/sanchobuendia/tickets/internal/api"
	"github.com/sanchobuendia/tickets/internal/chat"
	"github.com/sanchobuendia/tickets/internal/config"
	"github.com/sanchobuendia/tickets/internal/connector"
	slackconn "github.com/sanchobuendia/tickets/internal/connector/slack"
	"github.com/sanchobuendia/tickets/internal/connector/telegram"
	"github.com/sanchobuendia/tickets/internal/logbuf"
	"github.com/sanchobuendia/tickets/internal/provider"
	"github.com/sanchobuendia/tickets/internal/scheduler"
	"github.com/sanchobuendia/tickets/internal/search"
	"github.com/sanchobuendia/tickets/internal/session"
	"github.com/sanchobuendia/tickets/internal/ticket"
	"github.com/sanchobuendia/tickets/internal/tool"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("supportd starting", "service", cfg.Service.Name)

	// 1. Initialize provider(s)
	providers := make(map[string]provider.Provider)
	for name, pcfg := range cfg.Providers {
		providers[name] = buildProvider(pcfg)
		logger.Info("provider initialized", "name", name, "type", pcfg.Type, "model", pcfg.Model)
	}
	defaultProv, ok := providers["default"]
	if !ok {
		logger.Error("no 'default' provider configured")
		os.Exit(1)
	}

	// 2. Ticket store
	os.MkdirAll(cfg.Service.DataDir, 0o755)
	var store ticket.Store
	if cfg.Tickets.DBPath != "" {
		store, err = ticket.NewSQLiteStore(cfg.Tickets.DBPath)
		if err != nil {
			logger.Error("failed to open ticket store", "path", cfg.Tickets.DBPath, "error", err)
			os.Exit(1)
		}
		logger.Info("ticket store opened", "path", cfg.Tickets.DBPath)
	} else {
		store = ticket.NewMemoryStore()
		logger.Warn("no tickets.db_path configured, tickets are in-memory only")
	}

	// 3. Search index + datasets
	searchPath := cfg.Search.DBPath
	if searchPath == "" {
		searchPath = filepath.Join(cfg.Service.DataDir, "search.db")
	}
	index, err := search.NewIndex(searchPath)
	if err != nil {
		logger.Error("failed to open search index", "path", searchPath, "error", err)
		os.Exit(1)
	}
	kb, err := search.NewKnowledgeBase(index, logger.With("component", "knowledge-base"))
	if err != nil {
		logger.Error("failed to init knowledge base", "error", err)
		os.Exit(1)
	}
	categories, err := search.NewCategoryCodes(index, logger.With("component", "categories"))
	if err != nil {
		logger.Error("failed to init category index", "error", err)
		os.Exit(1)
	}
	if cfg.Search.KnowledgeCSV != "" {
		if _, err := kb.LoadCSV(cfg.Search.KnowledgeCSV); err != nil {
			logger.Error("failed to load knowledge CSV", "path", cfg.Search.KnowledgeCSV, "error", err)
			os.Exit(1)
		}
	}
	if cfg.Search.CategoryCSV != "" {
		if _, err := categories.LoadCSV(cfg.Search.CategoryCSV); err != nil {
			logger.Error("failed to load category CSV", "path", cfg.Search.CategoryCSV, "error", err)
			os.Exit(1)
		}
	}

	// 4. Session coordinator
	coord := session.NewCoordinator(logger.With("component", "sessions"))

	// 5. Agent team. Each specialist carries only the tools its job
	// needs; the orchestrator gets read-only ticket tools plus delegate.
	provFor := func(name string) provider.Provider {
		if p, ok := providers[name]; ok {
			return p
		}
		return defaultProv
	}
	newAgent := func(id, role, instructions string, tools *tool.Registry) *agent.Agent {
		ag := agent.New(agent.Spec{ID: id, Role: role, Instructions: instructions}, provFor(id), tools)
		ag.Logger = logger.With("agent", id)
		return ag
	}

	orchTools := tool.NewRegistry()
	orchTools.Register(&tool.GetTicketStatusTool{Store: store})
	orchTools.Register(&tool.ListTicketsTool{Store: store})
	orchTools.Register(&tool.CloseTicketTool{Store: store, Sessions: coord})

	team := agent.NewTeam(
		newAgent("orchestrator", "Support team coordinator", agent.OrchestratorInstructions, orchTools),
		logger.With("component", "team"),
	)

	supportTools := tool.NewRegistry()
	supportTools.Register(&tool.SearchKnowledgeBaseTool{Searcher: kb, Logger: logger})
	team.AddSpecialist(newAgent("support", "Technical support analyst", agent.SupportInstructions, supportTools))

	kbTools := tool.NewRegistry()
	kbTools.Register(&tool.SearchKnowledgeBaseTool{Searcher: kb, Logger: logger})
	kbTools.Register(&tool.FetchArticleTool{})
	team.AddSpecialist(newAgent("knowledge_base", "Knowledge base researcher", agent.KnowledgeBaseInstructions, kbTools))

	classifierTools := tool.NewRegistry()
	classifierTools.Register(&tool.SearchCategoryCodeTool{Searcher: categories, Logger: logger})
	team.AddSpecialist(newAgent("category_classifier", "Ticket classifier", agent.CategoryClassifierInstructions, classifierTools))

	creatorTools := tool.NewRegistry()
	creatorTools.Register(&tool.CreateTicketTool{Store: store, Sessions: coord, Logger: logger})
	creatorTools.Register(&tool.GetTicketStatusTool{Store: store})
	team.AddSpecialist(newAgent("ticket_creator", "Ticket registrar", agent.TicketCreatorInstructions, creatorTools))

	reservationTools := tool.NewRegistry()
	reservationTools.Register(&tool.CreateTicketTool{Store: store, Sessions: coord, Logger: logger})
	team.AddSpecialist(newAgent("reservation", "Reservation clerk", agent.ReservationInstructions, reservationTools))

	// 6. Chat router
	router := chat.NewRouter(team, coord, store, logger.With("component", "router"))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Maintenance scheduler
	sched := scheduler.New(logger.With("component", "scheduler"))
	idleTTL := time.Duration(cfg.Sessions.IdleTTLMinutes) * time.Minute
	countTickets := func() (int, int, error) {
		total, err := store.Count(ticket.Filter{})
		if err != nil {
			return 0, 0, err
		}
		open := protocol.TicketOpen
		openCount, err := store.Count(ticket.Filter{Status: &open})
		return total, openCount, err
	}
	if err := sched.RegisterMaintenance(router, idleTTL, cfg.Sessions.SweepSchedule, countTickets); err != nil {
		logger.Error("failed to register maintenance jobs", "error", err)
		os.Exit(1)
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 8. Connectors
	inbound := inboundHandler(router)
	if cfg.Connectors.Telegram != nil {
		tgConn, err := telegram.New(telegram.Config{
			Token:     cfg.Connectors.Telegram.Token,
			AllowFrom: cfg.Connectors.Telegram.AllowFrom,
		}, inbound, logger.With("connector", "telegram"))
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
	}
	if cfg.Connectors.Slack != nil {
		slConn, err := slackconn.New(slackconn.Config{
			BotToken: cfg.Connectors.Slack.BotToken,
			AppToken: cfg.Connectors.Slack.AppToken,
			Channels: cfg.Connectors.Slack.Channels,
		}, inbound, logger.With("connector", "slack"))
		if err != nil {
			logger.Error("failed to init slack connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "slack", func() { slConn.Start(ctx) })
	}

	// 9. API server
	apiSrv := apiPkg.NewServer(router, store, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)
	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 10. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("supportd stopped")
}

// inboundHandler adapts the chat router to the connector handler
// contract. The /new and /start commands drop the sender's conversation
// instead of producing an assistant turn.
func inboundHandler(router *chat.Router) connector.InboundHandler {
	return func(ctx context.Context, msg connector.InboundMessage) (string, error) {
		userID := msg.Channel + ":" + msg.SenderID
		content := strings.TrimSpace(msg.Content)

		// "new" without the slash is how Slack slash-command text arrives
		switch content {
		case "/new", "/start", "new":
			router.Reset(userID)
			return "Começando uma conversa nova. Descreva o seu problema!", nil
		}

		reply, err := router.HandleMessage(ctx, chat.Message{
			UserID:      userID,
			UserName:    msg.SenderName,
			Text:        content,
			Attachments: msg.Attachments,
		})
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}
}

func buildProvider(pcfg config.ProviderConfig) provider.Provider {
	switch pcfg.Type {
	case "anthropic":
		var opts []provider.AnthropicOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(pcfg.Model))
		}
		return provider.NewAnthropic(pcfg.APIKey, opts...)
	default: // "openai" or empty
		var opts []provider.OpenAIOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithModel(pcfg.Model))
		}
		return provider.NewOpenAI(pcfg.APIKey, opts...)
	}
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
