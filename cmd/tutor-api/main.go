package main

import (
	"context"
	stdlog "log"
	"net/http"

	httpadapter "github.com/mduval/tutor-agent/internal/adapters/http"
	"github.com/mduval/tutor-agent/internal/adapters/llm"
	firestorestore "github.com/mduval/tutor-agent/internal/adapters/storage/firestore"
	memstore "github.com/mduval/tutor-agent/internal/adapters/storage/memory"
	"github.com/mduval/tutor-agent/internal/app/clientstate"
	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/app/turn"
	"github.com/mduval/tutor-agent/internal/auth"
	"github.com/mduval/tutor-agent/internal/config"
	"github.com/mduval/tutor-agent/internal/domain"
	"github.com/mduval/tutor-agent/internal/observability"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	log := observability.Component("main")

	// Credentials. In local mode a missing file degrades to a dev login so
	// the process still comes up; in gcp mode it is a hard requirement.
	authn, err := auth.LoadFile(cfg.CredentialsFile)
	if err != nil {
		if cfg.Mode == config.ModeGCP {
			stdlog.Fatalf("loading credentials from %s: %v", cfg.CredentialsFile, err)
		}
		log.Warn("no credentials file, using dev login demo/demo", "file", cfg.CredentialsFile)
		authn = auth.New(map[string]string{"demo": "demo"})
	}

	// Persona gateway: mock in local mode, genai otherwise. A gateway that
	// cannot be constructed degrades to the mock rather than halting.
	var gateway domain.PersonaGateway
	if cfg.UseMockLLM {
		log.Info("using mock persona gateway")
		gateway = llm.NewMockGateway()
	} else {
		g, err := llm.NewGateway(ctx, llm.Config{
			APIKey:     cfg.GeminiAPIKey,
			ProjectID:  cfg.GCPProjectID,
			Location:   cfg.GCPLocation,
			ModelName:  cfg.ModelName,
			RetryDelay: cfg.LLMRetryDelay,
		})
		if err != nil {
			log.Error("failed to initialize persona gateway, falling back to mock", "error", err)
			gateway = llm.NewMockGateway()
		} else {
			log.Info("using genai persona gateway", "model", cfg.ModelName)
			gateway = g
		}
	}

	// Storage: Firestore or memory. A Firestore failure is surfaced once and
	// the process continues on the in-memory store.
	var sessionStore domain.SessionStore
	var messageStore domain.MessageStore

	switch cfg.StorageBackend {
	case "firestore":
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Error("failed to initialize Firestore, continuing with in-memory storage", "error", err)
			sessionStore = memstore.NewSessionStore()
			messageStore = memstore.NewMessageStore()
			break
		}
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		sessionStore = fsStore
		messageStore = fsStore
	default:
		log.Info("using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		messageStore = memstore.NewMessageStore()
	}

	treeSvc := tree.NewService(sessionStore)

	var ctrlOpts []turn.Option
	if cfg.PlanSubTopics {
		ctrlOpts = append(ctrlOpts, turn.WithPlannerForChildren())
	}
	ctrl := turn.NewController(treeSvc, messageStore, gateway, ctrlOpts...)

	states := clientstate.NewRegistry(cfg.StateTTL)

	handler := httpadapter.NewServer(authn, treeSvc, ctrl, states)

	addr := ":" + cfg.Port
	log.Info("tutor API listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		stdlog.Fatal(err)
	}
}
