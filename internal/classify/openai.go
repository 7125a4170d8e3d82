// Package classify proposes a project and category for expenses that arrived without one,
// using a chat model. Proposals are printed for a person to accept; nothing here writes to
// the ledgers.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"sqr/internal/logger"
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
	"sqr/pkg/services"
)

// ErrMissingAPIKey is returned when no OpenAI key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for suggestions")

// MaxCandidates bounds how many projects are offered to the model per expense.
const MaxCandidates = 15

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the suggester.
type Config struct {
	Model       string
	Temperature float32
	MaxRetries  int
}

// DefaultConfig returns the model settings used by the suggest command.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Temperature: 0.1,
		MaxRetries:  2,
	}
}

// OpenAISuggester implements services.CategorySuggester with the chat completions API.
type OpenAISuggester struct {
	client chatClient
	config Config
	log    zerolog.Logger
}

var _ services.CategorySuggester = (*OpenAISuggester)(nil)

// NewOpenAISuggester creates a suggester authenticated with apiKey.
func NewOpenAISuggester(apiKey string, config Config) (*OpenAISuggester, error) {
	const op = "NewOpenAISuggester"

	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAPIKey)
	}
	return newOpenAISuggester(openai.NewClient(apiKey), config), nil
}

func newOpenAISuggester(client chatClient, config Config) *OpenAISuggester {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	return &OpenAISuggester{
		client: client,
		config: config,
		log:    logger.WithComponent("classify"),
	}
}

// Suggest asks the model where expense belongs. Answers naming a project or category
// outside the offered lists are dropped rather than trusted.
func (s *OpenAISuggester) Suggest(ctx context.Context, expense *models.ExpenseEntry, projects []string, categories []string) (*services.Suggestion, error) {
	const op = "Suggest"

	if len(projects) == 0 {
		return &services.Suggestion{ExpenseID: expense.ID, Reason: "no projects to choose from"}, nil
	}

	prompt, err := buildPrompt(expense, projects, categories)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().
		Str("expense", expense.ID).
		Int("projects", len(projects)).
		Str("model", s.config.Model).
		Msg("Sending classification request")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: s.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens: 400,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("Classification request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		suggestion, err := parseSuggestion(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt).Str("response", resp.Choices[0].Message.Content).Msg("Unparseable classification response, retrying")
			continue
		}

		suggestion.ExpenseID = expense.ID
		suggestion.Project = pick(suggestion.Project, projects, func(s string) string { return string(projectkey.Canonicalize(s)) })
		suggestion.Category = pick(suggestion.Category, categories, strings.ToUpper)

		s.log.Info().
			Str("expense", expense.ID).
			Str("project", suggestion.Project).
			Str("category", suggestion.Category).
			Float64("confidence", suggestion.Confidence).
			Msg("Classification suggested")
		return suggestion, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, s.config.MaxRetries, lastErr)
}

const systemPrompt = `Clasificas gastos de una empresa de construccion y diseno. Cada gasto pertenece a uno de los proyectos listados. Responde solo con JSON.`

func buildPrompt(expense *models.ExpenseEntry, projects, categories []string) (string, error) {
	expenseJSON, err := json.MarshalIndent(map[string]interface{}{
		"proveedor":  expense.Supplier,
		"concepto":   expense.Concept,
		"referencia": expense.Reference,
		"fecha":      expense.Date.Format("2006-01-02"),
		"total":      money.Format(expense.Total),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal expense: %w", err)
	}

	return fmt.Sprintf(`GASTO:
%s

PROYECTOS POSIBLES:
- %s

CATEGORIAS:
- %s

Elige el proyecto y la categoria mas probables. Usa exactamente los nombres listados.
Responde con JSON en este formato:
{
  "project": "nombre del proyecto",
  "category": "categoria",
  "confidence": 0.8,
  "reason": "el proveedor ya facturo a este proyecto"
}

Si ningun proyecto encaja, deja "project" vacio.`,
		string(expenseJSON),
		strings.Join(projects, "\n- "),
		strings.Join(categories, "\n- "),
	), nil
}

// parseSuggestion reads the model answer, tolerating markdown code fences.
func parseSuggestion(content string) (*services.Suggestion, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var suggestion services.Suggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestion); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 1 {
		suggestion.Confidence = 1
	}
	return &suggestion, nil
}

// pick returns the option equal to answer under norm, or "".
func pick(answer string, options []string, norm func(string) string) string {
	want := norm(strings.Join(strings.Fields(answer), " "))
	if want == "" {
		return ""
	}
	for _, option := range options {
		if norm(strings.Join(strings.Fields(option), " ")) == want {
			return option
		}
	}
	return ""
}

// RankProjects orders projects for an expense: projects that already hold classified
// expenses from the same supplier come first, by count, then the rest in their given
// order. At most MaxCandidates are returned.
func RankProjects(expense *models.ExpenseEntry, classified []*models.ExpenseEntry, projects []string) []string {
	supplier := strings.ToUpper(strings.Join(strings.Fields(expense.Supplier), " "))
	hits := make(map[projectkey.Key]int)
	if supplier != "" {
		for _, e := range classified {
			if e.State != models.Classified || e.Project.IsUnassigned() {
				continue
			}
			if strings.ToUpper(strings.Join(strings.Fields(e.Supplier), " ")) == supplier {
				hits[projectkey.Canonicalize(string(e.Project))]++
			}
		}
	}

	ranked := append([]string(nil), projects...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return hits[projectkey.Canonicalize(ranked[i])] > hits[projectkey.Canonicalize(ranked[j])]
	})
	if len(ranked) > MaxCandidates {
		ranked = ranked[:MaxCandidates]
	}
	return ranked
}
