package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DateInterpreter turns a free-form upstream date string ("Every second
// Friday", "Ab 15. März täglich") into a structured interpretation. It is a
// last resort: candidates with parseable dates never reach it.
type DateInterpreter interface {
	Interpret(ctx context.Context, raw string, reference time.Time) (*DateInterpretation, error)
}

// DateInterpretation is the structured result of interpreting a raw date
// string. Exactly one of Dates or Pattern is populated; both empty means the
// interpreter could not commit to an answer and the occurrence stays unknown.
type DateInterpretation struct {
	Dates   []string `json:"dates"` // "2006-01-02"
	Time    string   `json:"time"`  // "15:04", optional
	Pattern *Pattern `json:"pattern,omitempty"`
}

// Pattern describes a recurrence extracted from prose.
type Pattern struct {
	Frequency string `json:"frequency"` // "weekly", "monthly", "daily"
	Weekday   string `json:"weekday,omitempty"`
	Interval  int    `json:"interval,omitempty"`
}

// OpenAIConfig holds settings for the OpenAI-backed interpreter.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// InterpreterConfigFromEnv builds config from environment variables.
// An empty OPENAI_API_KEY means the interpreter is disabled.
func InterpreterConfigFromEnv() OpenAIConfig {
	cfg := OpenAIConfig{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:       openai.GPT4oMini,
		Temperature: 0.0,
		MaxTokens:   300,
		Timeout:     20 * time.Second,
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Model = model
	}
	if raw := os.Getenv("OPENAI_MAX_TOKENS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	return cfg
}

// Enabled reports whether the config can back a live interpreter.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

const dateSystemPrompt = `You convert event date descriptions into JSON. ` +
	`Respond with an object: {"dates": ["YYYY-MM-DD", ...], "time": "HH:MM", ` +
	`"pattern": {"frequency": "weekly|monthly|daily", "weekday": "monday..sunday", "interval": N}}. ` +
	`Use "dates" for concrete dates, "pattern" for recurrences, never both. ` +
	`Omit fields you cannot determine. If the text is not a date, return {}.`

// OpenAIDateInterpreter implements DateInterpreter against the OpenAI chat
// completion API.
type OpenAIDateInterpreter struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

func NewOpenAIDateInterpreter(config OpenAIConfig, logger *slog.Logger) *OpenAIDateInterpreter {
	return &OpenAIDateInterpreter{
		client: openai.NewClient(config.APIKey),
		config: config,
		logger: logger,
	}
}

func (i *OpenAIDateInterpreter) Interpret(ctx context.Context, raw string, reference time.Time) (*DateInterpretation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty date string")
	}

	ctx, cancel := context.WithTimeout(ctx, i.config.Timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Today is %s. Date description: %q",
		reference.Format("Monday, 2006-01-02"), raw)

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       i.config.Model,
		Temperature: i.config.Temperature,
		MaxTokens:   i.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: dateSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	var interpretation DateInterpretation
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &interpretation); err != nil {
		return nil, fmt.Errorf("parse interpretation: %w", err)
	}

	// The model occasionally returns both; concrete dates win.
	if len(interpretation.Dates) > 0 {
		interpretation.Pattern = nil
	}

	i.logger.Debug("interpreted date string",
		"raw", raw,
		"dates", len(interpretation.Dates),
		"pattern", interpretation.Pattern != nil,
	)
	return &interpretation, nil
}

// MockDateInterpreter returns canned interpretations keyed by the raw
// string. Unknown inputs return an empty interpretation.
type MockDateInterpreter struct {
	Responses map[string]*DateInterpretation
	Err       error
	Calls     []string
}

func NewMockDateInterpreter() *MockDateInterpreter {
	return &MockDateInterpreter{Responses: make(map[string]*DateInterpretation)}
}

func (m *MockDateInterpreter) Interpret(ctx context.Context, raw string, reference time.Time) (*DateInterpretation, error) {
	m.Calls = append(m.Calls, raw)
	if m.Err != nil {
		return nil, m.Err
	}
	if resp, ok := m.Responses[raw]; ok {
		return resp, nil
	}
	return &DateInterpretation{}, nil
}
