package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mduval/tutor-agent/internal/domain"
	"github.com/mduval/tutor-agent/internal/observability"
)

// documentTextLimit bounds how much attached document text reaches the
// Planner prompt.
const documentTextLimit = 10_000

// overloadedMessage replaces a reply when the backend stays rate-limited
// after the single retry. It is stored and displayed like any other reply.
const overloadedMessage = "The tutor is overloaded right now. Wait a minute and ask again."

// Config selects the genai backend. With an APIKey the Gemini API is used;
// otherwise ProjectID and Location select Vertex AI.
type Config struct {
	APIKey     string
	ProjectID  string
	Location   string
	ModelName  string
	RetryDelay time.Duration
}

// Gateway implements domain.PersonaGateway over one hosted genai endpoint.
// Every persona call builds a fresh request carrying that persona's system
// instruction, seeds it with the supplied history, and submits the
// turn-specific input.
type Gateway struct {
	client     *genai.Client
	modelName  string
	retryDelay time.Duration
	sleep      func(time.Duration)
	call       func(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

func NewGateway(ctx context.Context, cfg Config) (*Gateway, error) {
	clientCfg := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		clientCfg.APIKey = cfg.APIKey
	case cfg.ProjectID != "" && cfg.Location != "":
		clientCfg.Project = cfg.ProjectID
		clientCfg.Location = cfg.Location
		clientCfg.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("either an API key or project and location must be configured")
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}

	g := &Gateway{
		client:     client,
		modelName:  modelName,
		retryDelay: retryDelay,
		sleep:      time.Sleep,
	}
	g.call = g.callModel
	return g, nil
}

// callModel submits one request to the backend and extracts the reply text.
func (g *Gateway) callModel(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", err
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}
	return text, nil
}

// generate runs one persona call: system instruction, optional history, then
// the turn input as the final user content. Quota failures are retried once
// after a fixed delay and then degraded to placeholder text; an unknown
// model degrades immediately to a message citing the model name. Neither is
// surfaced as an error.
func (g *Gateway) generate(ctx context.Context, system string, history []*domain.Message, input string) (string, error) {
	var contents []*genai.Content
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(input, genai.RoleUser))

	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   int32(8192),
	}

	log := observability.Component("llm").With("model", g.modelName)

	text, err := g.call(ctx, contents, cfg)
	if err != nil {
		switch {
		case isResourceExhausted(err):
			log.Warn("backend rate limited, retrying once", "delay", g.retryDelay)
			g.sleep(g.retryDelay)
			text, err = g.call(ctx, contents, cfg)
			if err != nil {
				log.Warn("retry failed, degrading to placeholder text", "error", err)
				return overloadedMessage, nil
			}
		case isModelNotFound(err):
			log.Warn("unknown model", "error", err)
			return fmt.Sprintf("The model %q is not available. Check the configured model name.", g.modelName), nil
		default:
			return "", fmt.Errorf("genai generate content: %w", err)
		}
	}

	return text, nil
}

func isResourceExhausted(err error) bool {
	if status.Code(err) == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "429")
}

func isModelNotFound(err error) bool {
	if status.Code(err) == codes.NotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not_found") || strings.Contains(msg, "is not found")
}

func truncateDocument(text string) string {
	if len(text) <= documentTextLimit {
		return text
	}
	return text[:documentTextLimit]
}
