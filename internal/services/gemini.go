package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/metrics"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrRateLimited   = errors.New("model provider rate limit reached")
	ErrProvider      = errors.New("model provider error")
)

const providerName = "gemini"

// ChatTurn is one message of a chat history. Role is "user" or "model".
type ChatTurn struct {
	Role string
	Text string
}

// ChatSession streams replies for a running conversation.
type ChatSession interface {
	Stream(ctx context.Context, message string, onChunk func(chunk string) error) error
}

// GeminiService is the model provider adapter. Every call waits for a token
// from the limiter shared by all jobs; nothing is retried.
type GeminiService interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateJSON(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateFromDocument(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	StartChat(ctx context.Context, system string, history []ChatTurn) (ChatSession, error)
}

type GeminiOptions struct {
	APIKey         string
	VisionModel    string
	AgentModel     string
	EmbeddingModel string
	Limiter        *ratelimit.Registry
	Logger         *slog.Logger
}

type geminiService struct {
	client      *genai.Client
	visionModel string
	agentModel  string
	embedModel  string
	limiter     *ratelimit.Registry
	log         *slog.Logger
}

func NewGeminiService(ctx context.Context, opts GeminiOptions) (GeminiService, error) {
	if opts.APIKey == "" {
		return nil, apperrors.Configuration("GEMINI_API_KEY is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewRegistry(ratelimit.Config{Limit: 5, Window: time.Minute, Burst: 1})
	}

	return &geminiService{
		client:      client,
		visionModel: opts.VisionModel,
		agentModel:  opts.AgentModel,
		embedModel:  opts.EmbeddingModel,
		limiter:     limiter,
		log:         log.With("component", "gemini"),
	}, nil
}

// wait takes a token from the bucket shared by every caller of model.
func (g *geminiService) wait(ctx context.Context, model string) error {
	start := time.Now()
	if err := g.limiter.Bucket(providerName + ":" + model).Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %s rate limit: %w", model, err)
	}
	waited := time.Since(start)
	metrics.LimiterWait(model, waited)
	if waited > time.Second {
		g.log.Debug("⏳ Rate limiter delayed model call", "model", model, "waited", waited.Round(time.Millisecond))
	}
	return nil
}

func (g *geminiService) generate(ctx context.Context, op, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if err := g.wait(ctx, model); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		err = g.classify(model, err)
		metrics.ModelCall(model, op, err)
		g.log.Error("❌ Gemini API error", "op", op, "model", model, "error", err)
		return "", err
	}

	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		err := apperrors.ExternalService(providerName, 0, "Empty response from Gemini", ErrEmptyResponse)
		metrics.ModelCall(model, op, err)
		return "", err
	}

	metrics.ModelCall(model, op, nil)
	return text, nil
}

func (g *geminiService) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.generate(ctx, "text", g.agentModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 8192,
	})
}

// GenerateJSON asks the model for an application/json response.
func (g *geminiService) GenerateJSON(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.generate(ctx, "json", g.agentModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	})
}

// GenerateFromDocument sends the prompt together with a PDF or image.
func (g *geminiService) GenerateFromDocument(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}
	temperature := float32(0)
	return g.generate(ctx, "vision", g.visionModel, contents, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 8192,
	})
}

func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long (max ~10000 tokens for embedding)
	if len(text) > 40000 {
		text = text[:40000]
	}

	if err := g.wait(ctx, g.embedModel); err != nil {
		return nil, err
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		err = g.classify(g.embedModel, err)
		metrics.ModelCall(g.embedModel, "embed", err)
		return nil, err
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		err := apperrors.ExternalService(providerName, 0, "Empty embedding result", ErrEmptyResponse)
		metrics.ModelCall(g.embedModel, "embed", err)
		return nil, err
	}

	metrics.ModelCall(g.embedModel, "embed", nil)
	return result.Embeddings[0].Values, nil
}

func (g *geminiService) StartChat(ctx context.Context, system string, history []ChatTurn) (ChatSession, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	temperature := float32(0.7)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	chat, err := g.client.Chats.Create(ctx, g.agentModel, config, contents)
	if err != nil {
		return nil, g.classify(g.agentModel, err)
	}
	return &geminiChat{service: g, chat: chat}, nil
}

type geminiChat struct {
	service *geminiService
	chat    *genai.Chat
}

// Stream sends message and hands every non-empty chunk to onChunk. It stops
// at the first error from the provider or the callback.
func (c *geminiChat) Stream(ctx context.Context, message string, onChunk func(chunk string) error) error {
	model := c.service.agentModel
	if err := c.service.wait(ctx, model); err != nil {
		return err
	}

	received := false
	for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: message}) {
		if err != nil {
			err = c.service.classify(model, err)
			metrics.ModelCall(model, "chat", err)
			return err
		}
		if resp == nil {
			continue
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		received = true
		if err := onChunk(chunk); err != nil {
			return err
		}
	}

	if !received {
		err := apperrors.ExternalService(providerName, 0, "Empty response from Gemini", ErrEmptyResponse)
		metrics.ModelCall(model, "chat", err)
		return err
	}
	metrics.ModelCall(model, "chat", nil)
	return nil
}

// classify maps a provider failure onto the error taxonomy.
func (g *geminiService) classify(model string, err error) error {
	return classifyProviderError(err, g.limiter.Bucket(providerName+":"+model).Status().RetryAfter)
}

func classifyProviderError(err error, retryAfter time.Duration) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota") {
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		e := apperrors.RateLimit(providerName, retryAfter)
		e.Err = fmt.Errorf("%w: %v", ErrRateLimited, err)
		return e
	}

	status := http.StatusBadGateway
	for _, code := range []int{400, 401, 403, 404, 500, 503} {
		if strings.Contains(msg, fmt.Sprintf("Error %d", code)) {
			status = code
			break
		}
	}
	return apperrors.ExternalService(providerName, status, "Gemini API error", fmt.Errorf("%w: %v", ErrProvider, err))
}
